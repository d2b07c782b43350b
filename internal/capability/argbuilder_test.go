package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOmitsFlagsNotAdvertisedByCaps(t *testing.T) {
	b := ArgBuilder{Caps: Record{}}
	args := b.Build(CliOptions{
		Prompt: "hello", ResumeSessionID: "sess-1", AppendSystemPrompt: "be nice",
		ToolServerConfigPath: "/tmp/manifest.json", AllowedTools: []string{"memory_search"},
		MaxTurns: 5, Model: "sonnet",
	})
	assert.Equal(t, []string{"--print", "--output-format", "stream-json", "hello"}, args)
}

func TestBuildIncludesResumeWhenSupported(t *testing.T) {
	b := ArgBuilder{Caps: Record{SupportsResume: true}}
	args := b.Build(CliOptions{ResumeSessionID: "sess-1"})
	assert.Contains(t, args, "--resume")
	assert.Contains(t, args, "sess-1")
}

func TestBuildPrefersSystemPromptFileOverInline(t *testing.T) {
	b := ArgBuilder{Caps: Record{SupportsSystemPromptFlag: true, SupportsSystemPromptFile: true}}
	args := b.Build(CliOptions{AppendSystemPromptFile: "/tmp/prompt.md", AppendSystemPrompt: "inline"})
	assert.Contains(t, args, "--append-system-prompt-file")
	assert.Contains(t, args, "/tmp/prompt.md")
	assert.NotContains(t, args, "inline")
}

func TestBuildFallsBackToFileContentsWhenFileFlagUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o644))

	b := ArgBuilder{Caps: Record{SupportsSystemPromptFlag: true}}
	args := b.Build(CliOptions{AppendSystemPromptFile: path, AppendSystemPrompt: "inline fallback"})
	assert.Contains(t, args, "--append-system-prompt")
	assert.Contains(t, args, "file contents")
	assert.NotContains(t, args, "inline fallback")
}

func TestBuildFallsBackToInlineWhenFileUnreadable(t *testing.T) {
	b := ArgBuilder{Caps: Record{SupportsSystemPromptFlag: true}}
	args := b.Build(CliOptions{AppendSystemPromptFile: "/nonexistent/prompt.md", AppendSystemPrompt: "inline fallback"})
	assert.Contains(t, args, "--append-system-prompt")
	assert.Contains(t, args, "inline fallback")
}

func TestBuildIncludesToolConfigAllowedToolsMaxTurnsModelWhenSupported(t *testing.T) {
	b := ArgBuilder{Caps: Record{
		SupportsToolServerConfig: true, SupportsAllowedTools: true,
		SupportsMaxTurns: true, SupportsModelSelection: true,
	}}
	args := b.Build(CliOptions{
		ToolServerConfigPath: "/tmp/manifest.json",
		AllowedTools:         []string{"memory_search", "sessions_list"},
		MaxTurns:             10, Model: "opus",
	})
	assert.Contains(t, args, "--mcp-config")
	assert.Contains(t, args, "/tmp/manifest.json")

	var allowedCount int
	for i, a := range args {
		if a == "--allowedTools" {
			allowedCount++
			require.Less(t, i+1, len(args))
		}
	}
	assert.Equal(t, 2, allowedCount)

	assert.Contains(t, args, "--max-turns")
	assert.Contains(t, args, "10")
	assert.Contains(t, args, "--model")
	assert.Contains(t, args, "opus")
}

func TestBuildOmitsPromptWhenEmpty(t *testing.T) {
	b := ArgBuilder{Caps: Record{}}
	args := b.Build(CliOptions{})
	assert.Equal(t, []string{"--print", "--output-format", "stream-json"}, args)
}
