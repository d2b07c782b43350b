// Package promptasm composes the per-invocation system prompt from an
// agent's soul, curated memory, and today's activity log, bounded by a size
// budget. Pure function, grounded in the teacher's bootstrap context-file
// assembly (internal/agent/resolver.go's contextFiles accumulation),
// simplified to the spec's three fixed sections.
package promptasm

import (
	"strings"
)

// activityLogBudget is the max trailing characters of today's activity log
// included in the prompt, per §4.5 step 3.
const activityLogBudget = 2000

// memoryPlaceholder is the default MEMORY.md template content; a memory file
// that still matches it verbatim counts as "not yet curated" and is omitted.
const memoryPlaceholder = "# Memory\n\n(no curated long-term notes yet)\n"

// Assemble composes the system prompt from soul, memory, and the activity
// log, in that order, sections joined by a blank line.
func Assemble(soul, memory, activityLog string) string {
	var sections []string

	if s := strings.TrimSpace(soul); s != "" {
		sections = append(sections, s)
	}

	if m := strings.TrimSpace(memory); m != "" && strings.TrimSpace(memory) != strings.TrimSpace(memoryPlaceholder) {
		sections = append(sections, "## Memory\n\n"+m)
	}

	if a := strings.TrimSpace(activityLog); a != "" {
		truncated := a
		prefix := ""
		if len(a) > activityLogBudget {
			truncated = a[len(a)-activityLogBudget:]
			prefix = "…"
		}
		sections = append(sections, "## Today's activity\n\n"+prefix+truncated)
	}

	return strings.Join(sections, "\n\n")
}
