// Package reflection implements the Reflection Driver (§4.11): after every
// Nth turn on a session, fires a meta-invocation that asks the agent to
// propose a revised soul document, snapshotting the prior version before
// writing the revision. Grounded in the teacher's per-conversation
// compaction-turn counter in internal/sessions/manager.go
// (IncrementCompaction-style gating), generalized here from a compaction
// trigger to a soul-rewrite trigger, and in cmd/gateway_cron.go's
// block-on-sendMessage-then-record-result shape reused unchanged for the
// meta-invocation itself.
package reflection

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/sessionmgr"
	"github.com/nextlevelbuilder/clade/internal/store"
)

// Invoker is the narrow view of the Session Manager the driver needs: one
// more turn, fired in the agent's own voice, asking it to rewrite its soul.
type Invoker interface {
	SendMessage(ctx context.Context, agentID, prompt, channel, userID, chatID string) (sessionmgr.SendResult, error)
}

// metaPromptTemplate asks the agent to propose a revised soul document
// given its current one. An empty or whitespace-only reply is treated as
// "no revision proposed" and leaves the soul untouched.
const metaPromptTemplate = `This is a reflection turn, not a conversation reply.

Your current soul document is below. Review your recent activity and
propose a revised version that better reflects what you've learned about
yourself and your work. Reply with ONLY the complete revised soul
document text, or an empty reply if no revision is warranted.

---
%s
---`

// Driver is the Reflection Driver: a per-agent in-flight guard plus the
// soul-rewrite meta-invocation. One Driver instance is shared by every
// session of every agent in the host.
type Driver struct {
	reg     *registry.Registry
	stores  *store.Stores
	invoker Invoker

	mu      sync.Mutex
	inFlight map[string]bool
}

// New constructs a Driver. reg resolves souls and reflection config;
// stores persists the per-session turn counter; invoker fires the
// meta-turn.
func New(reg *registry.Registry, stores *store.Stores, invoker Invoker) *Driver {
	return &Driver{
		reg:      reg,
		stores:   stores,
		invoker:  invoker,
		inFlight: make(map[string]bool),
	}
}

// Trigger is called after every successful turn on sessionID belonging to
// agentID. It increments the session's reflection counter, and if the
// counter has reached the agent's configured interval, resets it and runs
// one reflection. Errors are logged and swallowed per §7's Background
// class. At most one reflection per agent runs concurrently; a second
// Trigger for the same agent while one is in flight is dropped, satisfying
// §4.11/§9's per-agent lock and idempotence requirement.
func (d *Driver) Trigger(agentID, sessionID string) {
	if sessionID == "" {
		return
	}
	if !d.tryLock(agentID) {
		return
	}
	defer d.unlock(agentID)

	ctx := context.Background()

	bundle, err := d.reg.Get(agentID)
	if err != nil {
		slog.Error("reflection.agent_not_found", "agent", agentID, "error", err)
		return
	}
	cfg := bundle.Config.Reflection
	if cfg == nil || !cfg.Enabled || cfg.Interval <= 0 {
		return
	}

	turns, err := d.stores.Sessions.IncrementReflectionTurns(ctx, sessionID)
	if err != nil {
		slog.Error("reflection.increment_failed", "agent", agentID, "session", sessionID, "error", err)
		return
	}
	if turns < cfg.Interval {
		return
	}
	if err := d.stores.Sessions.ResetReflectionTurns(ctx, sessionID); err != nil {
		slog.Error("reflection.reset_failed", "agent", agentID, "session", sessionID, "error", err)
	}

	d.reflect(ctx, agentID)
}

func (d *Driver) reflect(ctx context.Context, agentID string) {
	soul, err := d.reg.ReadSoul(agentID)
	if err != nil {
		slog.Error("reflection.read_soul_failed", "agent", agentID, "error", err)
		return
	}

	prompt := buildMetaPrompt(soul)
	res, err := d.invoker.SendMessage(ctx, agentID, prompt, "reflection", agentID, "")
	if err != nil {
		slog.Error("reflection.invoke_failed", "agent", agentID, "error", err)
		return
	}

	revised := strings.TrimSpace(res.Text)
	if revised == "" {
		slog.Info("reflection.no_revision", "agent", agentID)
		return
	}

	date := time.Now().Format("2006-01-02")
	histPath, err := d.reg.SoulHistoryPath(agentID, date)
	if err != nil {
		slog.Error("reflection.history_path_failed", "agent", agentID, "error", err)
		return
	}
	if err := os.WriteFile(histPath, []byte(soul), 0o644); err != nil {
		slog.Error("reflection.snapshot_failed", "agent", agentID, "path", histPath, "error", err)
		return
	}
	if err := d.reg.WriteSoul(agentID, revised); err != nil {
		slog.Error("reflection.write_soul_failed", "agent", agentID, "error", err)
		return
	}
	slog.Info("reflection.soul_rewritten", "agent", agentID, "snapshot", histPath)
}

func buildMetaPrompt(soul string) string {
	return fmt.Sprintf(metaPromptTemplate, soul)
}

func (d *Driver) tryLock(agentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[agentID] {
		return false
	}
	d.inFlight[agentID] = true
	return true
}

func (d *Driver) unlock(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, agentID)
}
