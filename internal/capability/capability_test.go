package capability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionStringFormatsSemver(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3}
	assert.Equal(t, "1.2.3", v.String())

	v.Prerelease = "beta.1"
	assert.Equal(t, "1.2.3-beta.1", v.String())
}

func TestVersionLessComparesComponentwise(t *testing.T) {
	assert.True(t, (Version{Major: 1}).Less(Version{Major: 2}))
	assert.True(t, (Version{Major: 1, Minor: 2}).Less(Version{Major: 1, Minor: 3}))
	assert.True(t, (Version{Major: 1, Minor: 2, Patch: 3}).Less(Version{Major: 1, Minor: 2, Patch: 4}))
	assert.False(t, (Version{Major: 2}).Less(Version{Major: 1}))
	assert.False(t, (Version{Major: 1, Minor: 2, Patch: 3}).Less(Version{Major: 1, Minor: 2, Patch: 3}))
}

func TestParseVersionExtractsFirstSemver(t *testing.T) {
	v, ok := ParseVersion("clade-cli v1.4.2\n")
	require.True(t, ok)
	assert.Equal(t, Version{Major: 1, Minor: 4, Patch: 2}, v)
}

func TestParseVersionWithPrerelease(t *testing.T) {
	v, ok := ParseVersion("2.0.0-rc.1")
	require.True(t, ok)
	assert.Equal(t, 2, v.Major)
	assert.Equal(t, "rc.1", v.Prerelease)
}

func TestParseVersionNoMatchReturnsFalse(t *testing.T) {
	_, ok := ParseVersion("no version here")
	assert.False(t, ok)
}

// writeFakeCLI writes a shell script that answers --version/--help the way
// a real CLI would, for Probe to introspect without invoking anything
// external to this process.
func writeFakeCLI(t *testing.T, version, help string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-cli")
	script := "#!/bin/sh\ncase \"$1\" in\n  --version) echo '" + version + "' ;;\n  --help) cat <<'EOF'\n" + help + "\nEOF\n ;;\nesac\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const fullHelp = `Usage: clade-cli [options]
  --output-format stream-json   stream output as JSON
  --resume, --continue          resume a prior session
  --append-system-prompt        extra system prompt text
  --append-system-prompt-file   extra system prompt from a file
  --allowedTools                restrict tool access
  --mcp-config                  tool server manifest
  --max-turns                   cap agent turns
  --model                       select a model
  --agents                      inline subagent definitions
  --lazy-tools                  defer tool discovery
  --plugin                      export as a plugin
`

func TestProbeParsesVersionAndFlagsFromFakeCLI(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	cli := writeFakeCLI(t, "clade-cli v1.2.3", fullHelp)
	rec, err := Probe(context.Background(), cli)
	require.NoError(t, err)

	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, rec.Version)
	assert.True(t, rec.SupportsStreamJSON)
	assert.True(t, rec.SupportsResume)
	assert.True(t, rec.SupportsSystemPromptFlag)
	assert.True(t, rec.SupportsSystemPromptFile)
	assert.True(t, rec.SupportsAllowedTools)
	assert.True(t, rec.SupportsToolServerConfig)
	assert.True(t, rec.SupportsMaxTurns)
	assert.True(t, rec.SupportsModelSelection)
	assert.True(t, rec.SupportsInlineSubagents)
	assert.True(t, rec.SupportsLazyToolDiscovery)
	assert.True(t, rec.SupportsPluginExport)
}

func TestProbeRejectsVersionBelowMinimum(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	cli := writeFakeCLI(t, "clade-cli v0.9.0", fullHelp)
	_, err := Probe(context.Background(), cli)
	assert.Error(t, err)
}

func TestProbeRejectsMissingCriticalCapabilities(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	cli := writeFakeCLI(t, "clade-cli v1.0.0", "Usage: clade-cli\n  --model   select a model\n")
	_, err := Probe(context.Background(), cli)
	assert.ErrorContains(t, err, "missing critical capabilities")
}

func TestProbeCachesResultAcrossCalls(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	cli := writeFakeCLI(t, "clade-cli v1.2.3", fullHelp)
	first, err := Probe(context.Background(), cli)
	require.NoError(t, err)

	otherCLI := writeFakeCLI(t, "clade-cli v9.9.9", fullHelp)
	second, err := Probe(context.Background(), otherCLI)
	require.NoError(t, err)

	assert.Equal(t, first.Version, second.Version, "Probe should return the first-cached result regardless of binary passed on later calls")
}
