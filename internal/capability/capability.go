// Package capability probes an external CLI's version and supported flags,
// the way a one-shot introspection of a black-box collaborator should be
// done: run it with --version and --help, parse what it says about itself,
// and cache the result for the process lifetime. Child-process hygiene
// (timeout, SIGTERM-then-SIGKILL) follows the teacher's stdio MCP client
// lifecycle in internal/mcp/manager_connect.go, generalized from a
// long-lived MCP session to a single introspection run.
package capability

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

const probeTimeout = 10 * time.Second

// MinVersion is the minimum CLI semver this runtime is compatible with.
var MinVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Version is a parsed semver triple.
type Version struct {
	Major, Minor, Patch int
	Prerelease          string
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Less reports whether v is strictly older than other (prerelease ignored).
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

var versionRe = regexp.MustCompile(`v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?`)

// ParseVersion extracts the first semver triple found in s.
func ParseVersion(s string) (Version, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch, Prerelease: m[4]}, true
}

// Record enumerates what an external CLI advertises support for.
type Record struct {
	Version Version

	SupportsStreamJSON       bool
	SupportsResume           bool
	SupportsSystemPromptFlag bool
	SupportsSystemPromptFile bool
	SupportsAllowedTools     bool
	SupportsToolServerConfig bool
	SupportsMaxTurns         bool
	SupportsModelSelection   bool
	SupportsInlineSubagents  bool
	SupportsLazyToolDiscovery bool
	SupportsPluginExport     bool
}

// flagSignatures maps each optional/critical capability to the --help
// substrings that indicate the CLI advertises it.
var flagSignatures = map[string][]string{
	"stream-json":        {"--output-format", "stream-json"},
	"resume":             {"--resume", "--continue"},
	"system-prompt":      {"--append-system-prompt"},
	"system-prompt-file": {"--append-system-prompt-file"},
	"allowed-tools":      {"--allowed-tools", "--allowedTools"},
	"tool-server-config": {"--mcp-config", "--tool-config"},
	"max-turns":          {"--max-turns"},
	"model":              {"--model"},
	"inline-subagents":   {"--agents"},
	"lazy-tool-discovery": {"--lazy-tools"},
	"plugin-export":      {"--plugin"},
}

var (
	once     sync.Once
	cached   Record
	cachedOK bool
	cachedErr error
)

// Probe runs `<cli> --version` and `<cli> --help` and returns the cached
// capability record for the process lifetime. Subsequent calls with any
// binary path return the first result until ResetForTest is called.
func Probe(ctx context.Context, cliPath string) (Record, error) {
	once.Do(func() {
		cached, cachedErr = probe(ctx, cliPath)
		cachedOK = cachedErr == nil
	})
	if !cachedOK {
		return Record{}, cachedErr
	}
	return cached, nil
}

// ResetForTest clears the cached probe result. Test-only hook per §4.2.
func ResetForTest() {
	once = sync.Once{}
	cached = Record{}
	cachedOK = false
	cachedErr = nil
}

func probe(ctx context.Context, cliPath string) (Record, error) {
	versionOut, err := run(ctx, cliPath, "--version")
	if err != nil {
		return Record{}, clerr.Wrap(clerr.CLIErr, "probe --version", err)
	}
	v, ok := ParseVersion(versionOut)
	if !ok {
		return Record{}, clerr.New(clerr.CLIErr, "could not parse CLI version from --version output")
	}
	if v.Less(MinVersion) {
		return Record{}, clerr.New(clerr.CLIErr, fmt.Sprintf("CLI version %s below minimum %s", v, MinVersion))
	}

	helpOut, err := run(ctx, cliPath, "--help")
	if err != nil {
		return Record{}, clerr.Wrap(clerr.CLIErr, "probe --help", err)
	}

	has := func(key string) bool {
		for _, sig := range flagSignatures[key] {
			if strings.Contains(helpOut, sig) {
				return true
			}
		}
		return false
	}

	r := Record{
		Version:                   v,
		SupportsStreamJSON:        has("stream-json"),
		SupportsResume:            has("resume"),
		SupportsSystemPromptFlag:  has("system-prompt"),
		SupportsSystemPromptFile:  has("system-prompt-file"),
		SupportsAllowedTools:      has("allowed-tools"),
		SupportsToolServerConfig:  has("tool-server-config"),
		SupportsMaxTurns:          has("max-turns"),
		SupportsModelSelection:    has("model"),
		SupportsInlineSubagents:   has("inline-subagents"),
		SupportsLazyToolDiscovery: has("lazy-tool-discovery"),
		SupportsPluginExport:      has("plugin-export"),
	}

	var missingCritical []string
	if !r.SupportsStreamJSON {
		missingCritical = append(missingCritical, "stream-json")
	}
	if !r.SupportsResume {
		missingCritical = append(missingCritical, "resume")
	}
	if !r.SupportsSystemPromptFlag && !r.SupportsSystemPromptFile {
		missingCritical = append(missingCritical, "system-prompt")
	}
	if len(missingCritical) > 0 {
		return Record{}, clerr.New(clerr.CLIErr, fmt.Sprintf("CLI missing critical capabilities: %s", strings.Join(missingCritical, ", ")))
	}

	return r, nil
}

// run executes cliPath with a single flag under probeTimeout, killing the
// child if it doesn't exit in time, and returns combined stdout+stderr.
func run(ctx context.Context, cliPath string, flag string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, cliPath, flag)
	out, err := cmd.CombinedOutput()
	if cctx.Err() != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			time.Sleep(2 * time.Second)
			_ = cmd.Process.Kill()
		}
		return "", fmt.Errorf("%s %s timed out after %s", cliPath, flag, probeTimeout)
	}
	if err != nil {
		// --help/--version sometimes exit non-zero; still useful output.
		if len(out) == 0 {
			return "", err
		}
	}
	return string(out), nil
}
