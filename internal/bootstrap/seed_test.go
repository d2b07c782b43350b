package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAgentFilesCreatesAllFourTemplates(t *testing.T) {
	dir := t.TempDir()
	created, err := EnsureAgentFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{SoulFile, MemoryFile, HeartbeatFile, ToolsFile}, created)

	for _, name := range []string{SoulFile, MemoryFile, HeartbeatFile, ToolsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestEnsureAgentFilesNeverOverwritesExistingContent(t *testing.T) {
	dir := t.TempDir()
	_, err := EnsureAgentFiles(dir)
	require.NoError(t, err)

	soulPath := filepath.Join(dir, SoulFile)
	require.NoError(t, os.WriteFile(soulPath, []byte("custom soul text"), 0o644))

	created, err := EnsureAgentFiles(dir)
	require.NoError(t, err)
	assert.NotContains(t, created, SoulFile)

	data, err := os.ReadFile(soulPath)
	require.NoError(t, err)
	assert.Equal(t, "custom soul text", string(data))
}

func TestReadTemplateReturnsEmbeddedContent(t *testing.T) {
	content, err := ReadTemplate(SoulFile)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestReadTemplateUnknownNameErrors(t *testing.T) {
	_, err := ReadTemplate("NOT_A_REAL_FILE.md")
	assert.Error(t, err)
}
