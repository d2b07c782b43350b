// Package toolconfig resolves the set of tool servers one invocation
// exposes to the child CLI and writes it to a temp manifest file, per
// §4.6. The on-disk shape mirrors the teacher's
// internal/config.MCPServerConfig (internal/config/config_channels.go),
// reusing mark3labs/mcp-go's stdio client naming conventions for the
// transport/command/args/env fields instead of inventing a parallel
// schema, so the manifest the spawned CLI reads is structurally the same
// document the teacher's internal/mcp.Manager would have consumed.
package toolconfig

import (
	"encoding/json"
	"os"

	"github.com/nextlevelbuilder/clade/internal/config"
)

// ServerEntry is one tool-server manifest entry: a command, its argument
// vector, and an environment map carrying the calling agent id, the
// host's home directory, and the IPC socket path.
type ServerEntry struct {
	Transport string            `json:"transport"`
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Manifest is the full per-invocation tool-server document, keyed by
// server name.
type Manifest struct {
	Servers map[string]ServerEntry `json:"mcpServers"`
}

// presetServers is the fixed built-in-server table from §4.6.
var presetServers = map[string][]string{
	"potato":    {},
	"coding":    {"memory", "sessions", "skills"},
	"messaging": {"memory", "sessions", "messaging", "skills"},
	"full":      {"memory", "sessions", "messaging", "skills"},
	"custom":    {},
}

// BuildOpts carries everything needed to resolve one invocation's manifest.
type BuildOpts struct {
	AgentID       string
	HomeDir       string
	IPCSocketPath string
	SelfExe       string // path to this binary, used to spawn built-in tool servers in subcommand mode
	Preset        string
	CustomTools   []string
	Skills        []string
	AdminEnabled  bool
	Browser       config.BrowserConfig
}

// Builder resolves tool-server manifests per §4.6's policy.
type Builder struct{}

func New() *Builder { return &Builder{} }

// Build resolves the server set for opts and returns the manifest plus
// the list of allowed tool names (preset built-ins in table order, then
// the custom list for preset=custom; not sorted), used by the
// capability-gated --allowedTools argument.
func (b *Builder) Build(opts BuildOpts) (Manifest, []string) {
	servers := make(map[string]ServerEntry)
	names := presetServers[opts.Preset]
	for _, name := range names {
		servers[name] = b.builtinEntry(name, opts)
	}

	if opts.AdminEnabled {
		servers["admin"] = b.builtinEntry("admin", opts)
	}

	// Skills that collide with a built-in name are silently discarded.
	for _, skill := range opts.Skills {
		if _, exists := servers[skill]; exists {
			continue
		}
		servers[skill] = b.skillEntry(skill, opts)
	}

	if opts.Browser.Enabled {
		servers["browser"] = b.browserEntry(opts)
	}

	allowed := make([]string, 0, len(names)+len(opts.CustomTools))
	allowed = append(allowed, names...)
	if opts.Preset == "custom" {
		allowed = append(allowed, opts.CustomTools...)
	}

	return Manifest{Servers: servers}, allowed
}

func (b *Builder) baseEnv(opts BuildOpts) map[string]string {
	return map[string]string{
		"CLADE_AGENT_ID":     opts.AgentID,
		"CLADE_HOME_DIR":     opts.HomeDir,
		"CLADE_IPC_SOCKET":   opts.IPCSocketPath,
	}
}

// builtinEntry spawns this same binary in `tool-server <name>` mode,
// the way the teacher's stdio MCP servers are each a small dedicated
// subprocess; here they're subcommands of the host binary itself so the
// built-in tool servers ship with no extra artifacts.
func (b *Builder) builtinEntry(name string, opts BuildOpts) ServerEntry {
	return ServerEntry{
		Transport: "stdio",
		Command:   opts.SelfExe,
		Args:      []string{"tool-server", name},
		Env:       b.baseEnv(opts),
	}
}

func (b *Builder) skillEntry(name string, opts BuildOpts) ServerEntry {
	return ServerEntry{
		Transport: "stdio",
		Command:   opts.SelfExe,
		Args:      []string{"tool-server", "skill", name},
		Env:       b.baseEnv(opts),
	}
}

func (b *Builder) browserEntry(opts BuildOpts) ServerEntry {
	env := b.baseEnv(opts)
	if opts.Browser.UserDataDir != "" {
		env["CLADE_BROWSER_USER_DATA_DIR"] = opts.Browser.UserDataDir
	}
	if opts.Browser.CDPEndpoint != "" {
		env["CLADE_BROWSER_CDP_ENDPOINT"] = opts.Browser.CDPEndpoint
	}
	if opts.Browser.Browser != "" {
		env["CLADE_BROWSER_BIN"] = opts.Browser.Browser
	}
	if opts.Browser.Headless {
		env["CLADE_BROWSER_HEADLESS"] = "1"
	}
	return ServerEntry{
		Transport: "stdio",
		Command:   opts.SelfExe,
		Args:      []string{"tool-server", "browser"},
		Env:       env,
	}
}

// Write serializes m to a private temp file and returns its path. The
// caller is responsible for best-effort cleanup after the invocation.
func Write(m Manifest) (string, error) {
	f, err := os.CreateTemp("", "clade-tools-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Chmod(0o600); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Cleanup removes the manifest file at path, ignoring errors (§4.6:
// "deleted best-effort after the invocation").
func Cleanup(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
