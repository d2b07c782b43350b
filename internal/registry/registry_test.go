package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/config"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(t.TempDir(), &config.Config{})
	require.NoError(t, err)
	return reg
}

func TestValidateRejectsBadID(t *testing.T) {
	err := Validate("Bad ID!", config.AgentSpec{})
	assert.Equal(t, clerr.Validation, clerr.KindOf(err))
}

func TestValidateRejectsUnknownPreset(t *testing.T) {
	err := Validate("jarvis", config.AgentSpec{Preset: "bogus"})
	assert.Equal(t, clerr.Validation, clerr.KindOf(err))
}

func TestValidateCustomPresetRequiresCustomTools(t *testing.T) {
	err := Validate("jarvis", config.AgentSpec{Preset: "custom"})
	assert.Equal(t, clerr.Validation, clerr.KindOf(err))

	err = Validate("jarvis", config.AgentSpec{Preset: "custom", CustomTools: []string{"web_search"}})
	assert.NoError(t, err)
}

func TestRegisterSeedsAgentDirectories(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("jarvis", config.AgentSpec{Preset: "coding"}))

	b, err := reg.Get("jarvis")
	require.NoError(t, err)
	assert.DirExists(t, b.MemoryDir)
	assert.DirExists(t, filepath.Join(b.BaseDir, "soul-history"))
	assert.DirExists(t, filepath.Join(b.BaseDir, "tools-history"))
}

func TestRegisterRejectsInvalidSpecWithoutSeeding(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.Register("jarvis", config.AgentSpec{Preset: "bogus"})
	assert.Equal(t, clerr.Validation, clerr.KindOf(err))
	assert.False(t, reg.Has("jarvis"))
}

func TestGetMissingAgentIsNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Get("ghost")
	assert.Equal(t, clerr.NotFound, clerr.KindOf(err))
}

func TestUnregisterDropsFromListButLeavesFilesOnDisk(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("jarvis", config.AgentSpec{}))
	require.NoError(t, reg.WriteSoul("jarvis", "hello"))

	b, err := reg.Get("jarvis")
	require.NoError(t, err)

	reg.Unregister("jarvis")
	assert.False(t, reg.Has("jarvis"))
	assert.FileExists(t, b.SoulPath)
}

func TestWriteSoulThenReadSoulRoundTrips(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("jarvis", config.AgentSpec{}))

	require.NoError(t, reg.WriteSoul("jarvis", "I am Jarvis."))
	got, err := reg.ReadSoul("jarvis")
	require.NoError(t, err)
	assert.Equal(t, "I am Jarvis.", got)
}

func TestReadMissingDocumentReturnsEmptyNotError(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("jarvis", config.AgentSpec{}))

	got, err := reg.ReadHeartbeat("jarvis")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListReturnsBundleForEveryRegisteredAgent(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("jarvis", config.AgentSpec{}))
	require.NoError(t, reg.Register("scout", config.AgentSpec{}))

	bundles := reg.List()
	assert.Len(t, bundles, 2)

	ids := reg.IDs()
	assert.ElementsMatch(t, []string{"jarvis", "scout"}, ids)
}

func TestSoulHistoryPathAndActivityLogPathAreUnderAgentDir(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.Register("jarvis", config.AgentSpec{}))

	histPath, err := reg.SoulHistoryPath("jarvis", "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reg.agentDir("jarvis"), "soul-history", "2026-07-31.md"), histPath)

	logPath, err := reg.ActivityLogPath("jarvis", "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reg.agentDir("jarvis"), "memory", "2026-07-31.md"), logPath)
}

func TestNewSeedsAgentsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Agents: config.AgentsConfig{
			List: map[string]config.AgentSpec{
				"jarvis": {Preset: "coding"},
			},
		},
	}
	reg, err := New(t.TempDir(), cfg)
	require.NoError(t, err)
	assert.True(t, reg.Has("jarvis"))
}

func TestNewFailsFastOnInvalidSeedConfig(t *testing.T) {
	cfg := &config.Config{
		Agents: config.AgentsConfig{
			List: map[string]config.AgentSpec{
				"jarvis": {Preset: "bogus"},
			},
		},
	}
	_, err := New(t.TempDir(), cfg)
	assert.Error(t, err)
}
