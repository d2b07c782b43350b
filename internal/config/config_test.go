package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringSliceUnmarshalsStringArray(t *testing.T) {
	var f FlexibleStringSlice
	require.NoError(t, f.UnmarshalJSON([]byte(`["a","b"]`)))
	assert.Equal(t, FlexibleStringSlice{"a", "b"}, f)
}

func TestFlexibleStringSliceUnmarshalsMixedArray(t *testing.T) {
	var f FlexibleStringSlice
	require.NoError(t, f.UnmarshalJSON([]byte(`["a", 123, true]`)))
	assert.Equal(t, FlexibleStringSlice{"a", "123", "true"}, f)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, cfg.SchemaVersion)
	assert.Equal(t, "coding", cfg.Agents.Defaults.Preset)
}

func TestLoadParsesJSON5File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // a comment, since json5 allows it
  schemaVersion: 1,
  agents: { defaults: { model: "opus", preset: "messaging", maxTurns: 10 } },
}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "opus", cfg.Agents.Defaults.Model)
	assert.Equal(t, "messaging", cfg.Agents.Defaults.Preset)
	assert.Equal(t, 10, cfg.Agents.Defaults.MaxTurns)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CLADE_MODEL", "env-model")
	t.Setenv("CLADE_PORT", "9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Agents.Defaults.Model)
	assert.Equal(t, 9999, cfg.Gateway.Port)
}

func TestLoadIgnoresInvalidPortOverride(t *testing.T) {
	t.Setenv("CLADE_PORT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 18790, cfg.Gateway.Port)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Agents.Defaults.Model = "custom-model"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-model", got.Agents.Defaults.Model)
}

func TestResolveAgentMergesOverridesOntoDefaults(t *testing.T) {
	cfg := Default()
	cfg.Agents.List = map[string]AgentSpec{
		"jarvis": {
			Model: "opus", MaxTurns: 50,
			Reflection: &ReflectionConfig{Enabled: true, Interval: 10},
		},
	}

	resolved := cfg.ResolveAgent("jarvis")
	assert.Equal(t, "opus", resolved.Model)
	assert.Equal(t, 50, resolved.MaxTurns)
	assert.True(t, resolved.ReflectionEnabled)
	assert.Equal(t, 10, resolved.ReflectionEvery)
	assert.Equal(t, "coding", resolved.Preset, "unset override fields fall back to defaults")
}

func TestResolveAgentUnknownIDReturnsBareDefaults(t *testing.T) {
	cfg := Default()
	resolved := cfg.ResolveAgent("ghost")
	assert.Equal(t, cfg.Agents.Defaults, resolved)
}

func TestReplaceFromCopiesAllFields(t *testing.T) {
	cfg := Default()
	fresh := Default()
	fresh.Agents.Defaults.Model = "new-model"
	fresh.Gateway.Port = 1234

	cfg.ReplaceFrom(fresh)
	assert.Equal(t, "new-model", cfg.Agents.Defaults.Model)
	assert.Equal(t, 1234, cfg.Gateway.Port)
}

func TestExpandHomeReplacesLeadingTilde(t *testing.T) {
	home, _ := os.UserHomeDir()
	assert.Equal(t, home+"/clade", ExpandHome("~/clade"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/absolute/path", ExpandHome("/absolute/path"))
	assert.Equal(t, "", ExpandHome(""))
}
