// Package registry resolves an agent id to its identity bundle: validated
// config plus the filesystem paths of its four documents (soul, memory,
// heartbeat, tools notes). It is the single writer of those documents,
// generalizing the teacher's config-driven agent resolution
// (internal/agent/resolver.go's NewManagedResolver) from DB-backed to
// filesystem-backed, and reusing its bootstrap.EnsureWorkspaceFiles-style
// template seeding per agent directory instead of once per workspace.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/nextlevelbuilder/clade/internal/bootstrap"
	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/config"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

var validPresets = map[string]bool{
	"potato": true, "coding": true, "messaging": true, "full": true, "custom": true,
}

// Bundle is the resolved view of one agent: its config plus document paths.
type Bundle struct {
	ID            string
	Config        config.AgentSpec
	BaseDir       string
	SoulPath      string
	MemoryDir     string
	HeartbeatPath string
	ToolsPath     string
}

// Registry owns all agent identity documents under homeDir/agents/<id>/.
type Registry struct {
	homeDir string

	mu     sync.RWMutex
	agents map[string]config.AgentSpec
}

// New constructs a Registry rooted at homeDir, seeding bundles for any
// agents already declared in cfg.Agents.List.
func New(homeDir string, cfg *config.Config) (*Registry, error) {
	r := &Registry{
		homeDir: homeDir,
		agents:  make(map[string]config.AgentSpec),
	}
	for id, spec := range cfg.Agents.List {
		if err := r.Register(id, spec); err != nil {
			return nil, fmt.Errorf("seed agent %q: %w", id, err)
		}
	}
	return r, nil
}

// Validate checks the config invariants from §3: id pattern, and
// preset=custom requiring a non-empty custom tool list.
func Validate(id string, spec config.AgentSpec) error {
	if !idPattern.MatchString(id) {
		return clerr.Validationf("agent id %q must match [a-z0-9_-]+", id)
	}
	if spec.Preset != "" && !validPresets[spec.Preset] {
		return clerr.Validationf("agent %q: unknown preset %q", id, spec.Preset)
	}
	if spec.Preset == "custom" && len(spec.CustomTools) == 0 {
		return clerr.Validationf("agent %q: preset=custom requires a non-empty customTools list", id)
	}
	return nil
}

func (r *Registry) agentDir(id string) string {
	return filepath.Join(r.homeDir, "agents", id)
}

// Register validates spec and persists it, creating the agent's documents
// if absent. Re-registering an existing id replaces its config in place.
func (r *Registry) Register(id string, spec config.AgentSpec) error {
	if err := Validate(id, spec); err != nil {
		return err
	}

	dir := r.agentDir(id)
	if _, err := bootstrap.EnsureAgentFiles(dir); err != nil {
		return clerr.Wrap(clerr.StoreErr, "seed agent documents", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "memory"), 0o755); err != nil {
		return clerr.Wrap(clerr.StoreErr, "create memory dir", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "soul-history"), 0o755); err != nil {
		return clerr.Wrap(clerr.StoreErr, "create soul-history dir", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "tools-history"), 0o755); err != nil {
		return clerr.Wrap(clerr.StoreErr, "create tools-history dir", err)
	}

	r.mu.Lock()
	r.agents[id] = spec
	r.mu.Unlock()
	return nil
}

// Unregister drops the agent's config from the live registry. Per §3,
// removal leaves the documents on disk.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// List returns the bundle for every registered agent.
func (r *Registry) List() []Bundle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bundle, 0, len(r.agents))
	for id, spec := range r.agents {
		out = append(out, r.bundle(id, spec))
	}
	return out
}

// IDs returns the set of registered agent ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[id]
	return ok
}

// TryGet returns the bundle for id, or false if unregistered.
func (r *Registry) TryGet(id string) (Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.agents[id]
	if !ok {
		return Bundle{}, false
	}
	return r.bundle(id, spec), true
}

// Get returns the bundle for id, or a NotFound error.
func (r *Registry) Get(id string) (Bundle, error) {
	b, ok := r.TryGet(id)
	if !ok {
		return Bundle{}, clerr.NotFoundf("agent %q not found", id)
	}
	return b, nil
}

func (r *Registry) bundle(id string, spec config.AgentSpec) Bundle {
	dir := r.agentDir(id)
	return Bundle{
		ID:            id,
		Config:        spec,
		BaseDir:       dir,
		SoulPath:      filepath.Join(dir, bootstrap.SoulFile),
		MemoryDir:     filepath.Join(dir, "memory"),
		HeartbeatPath: filepath.Join(dir, bootstrap.HeartbeatFile),
		ToolsPath:     filepath.Join(dir, bootstrap.ToolsFile),
	}
}

func (r *Registry) read(id, relPath string) (string, error) {
	b, err := r.Get(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(b.BaseDir, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", clerr.Wrap(clerr.StoreErr, "read "+relPath, err)
	}
	return string(data), nil
}

func (r *Registry) write(id, relPath, content string) error {
	b, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(b.BaseDir, relPath), []byte(content), 0o644); err != nil {
		return clerr.Wrap(clerr.StoreErr, "write "+relPath, err)
	}
	return nil
}

func (r *Registry) ReadSoul(id string) (string, error)   { return r.read(id, bootstrap.SoulFile) }
func (r *Registry) WriteSoul(id, s string) error         { return r.write(id, bootstrap.SoulFile, s) }
func (r *Registry) ReadHeartbeat(id string) (string, error) {
	return r.read(id, bootstrap.HeartbeatFile)
}
func (r *Registry) WriteHeartbeat(id, s string) error {
	return r.write(id, bootstrap.HeartbeatFile, s)
}
func (r *Registry) ReadToolsNotes(id string) (string, error) { return r.read(id, bootstrap.ToolsFile) }
func (r *Registry) WriteToolsNotes(id, s string) error       { return r.write(id, bootstrap.ToolsFile, s) }

// ReadMemory returns the content of MEMORY.md (distinct from the memory/
// activity-log directory).
func (r *Registry) ReadMemory(id string) (string, error) {
	return r.read(id, bootstrap.MemoryFile)
}

// SoulHistoryPath returns the path a reflection snapshot for date (format
// YYYY-MM-DD) should be written to.
func (r *Registry) SoulHistoryPath(id, date string) (string, error) {
	b, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.BaseDir, "soul-history", date+".md"), nil
}

// ActivityLogPath returns the path of today's activity log for date (format
// YYYY-MM-DD).
func (r *Registry) ActivityLogPath(id, date string) (string, error) {
	b, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.MemoryDir, date+".md"), nil
}
