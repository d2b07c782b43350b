package capability

import (
	"os"
	"strconv"
)

// CliOptions is the set of per-invocation parameters the Session Manager
// wants applied to the CLI invocation, independent of whether the installed
// CLI actually supports each one.
type CliOptions struct {
	Prompt                  string
	ResumeSessionID         string
	AppendSystemPrompt      string // inline system prompt text
	AppendSystemPromptFile  string // path to a file containing the system prompt
	ToolServerConfigPath    string
	AllowedTools            []string
	MaxTurns                int
	Model                   string
}

// ArgBuilder builds an argument vector gated by a capability Record:
// flags for capabilities the CLI doesn't advertise are silently omitted,
// per §4.2's fallback chain and property 7.
type ArgBuilder struct {
	Caps Record
}

// Build returns the argument vector for opts, omitting anything the probed
// CLI doesn't support. If file-based system-prompt injection is
// unsupported, it falls back to reading the file and passing its contents
// inline (and if that read fails, falls back further to the caller-supplied
// inline value).
func (b ArgBuilder) Build(opts CliOptions) []string {
	var args []string

	args = append(args, "--print", "--output-format", "stream-json")

	if opts.ResumeSessionID != "" && b.Caps.SupportsResume {
		args = append(args, "--resume", opts.ResumeSessionID)
	}

	switch {
	case opts.AppendSystemPromptFile != "" && b.Caps.SupportsSystemPromptFile:
		args = append(args, "--append-system-prompt-file", opts.AppendSystemPromptFile)
	case opts.AppendSystemPromptFile != "" && b.Caps.SupportsSystemPromptFlag:
		if data, err := os.ReadFile(opts.AppendSystemPromptFile); err == nil {
			args = append(args, "--append-system-prompt", string(data))
		} else if opts.AppendSystemPrompt != "" {
			args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
		}
	case opts.AppendSystemPrompt != "" && b.Caps.SupportsSystemPromptFlag:
		args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
	}

	if opts.ToolServerConfigPath != "" && b.Caps.SupportsToolServerConfig {
		args = append(args, "--mcp-config", opts.ToolServerConfigPath)
	}

	if len(opts.AllowedTools) > 0 && b.Caps.SupportsAllowedTools {
		for _, t := range opts.AllowedTools {
			args = append(args, "--allowedTools", t)
		}
	}

	if opts.MaxTurns > 0 && b.Caps.SupportsMaxTurns {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}

	if opts.Model != "" && b.Caps.SupportsModelSelection {
		args = append(args, "--model", opts.Model)
	}

	if opts.Prompt != "" {
		args = append(args, opts.Prompt)
	}

	return args
}
