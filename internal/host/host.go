// Package host wires every component (Store, Registry, Session Manager,
// Cron Scheduler, Task Queue, Reflection Driver, IPC Server, memory
// indexer, filesystem watcher) into one running process. Construction
// order follows the teacher's cmd/serve.go dependency graph (retrieved
// for this exercise: DB before Registry before Manager before the
// gateway), built leaves-first here so each component only ever depends
// on ones already constructed.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/clade/internal/capability"
	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/cron"
	"github.com/nextlevelbuilder/clade/internal/gatewayboundary"
	"github.com/nextlevelbuilder/clade/internal/ipc"
	"github.com/nextlevelbuilder/clade/internal/memoryindex"
	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/sessionmgr"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/supervisor"
	"github.com/nextlevelbuilder/clade/internal/taskqueue"
	"github.com/nextlevelbuilder/clade/internal/watcher"
)

// Host owns every long-lived component and their wiring.
type Host struct {
	cfg     *config.Config
	homeDir string
	cliPath string

	db         *store.DB
	stores     *store.Stores
	reg        *registry.Registry
	caps       capability.Record
	sessions   *sessionmgr.Manager
	cron       *cron.Scheduler
	tasks      *taskqueue.Queue
	deliverers *gatewayboundary.Registry
	indexer    *memoryindex.Indexer
	watch      *watcher.Watcher
	ipcServer  *ipc.Server
	sup        *supervisor.Supervisor
}

// New constructs every component. Probing the CLI's capabilities talks to
// the filesystem/subprocess, so New can fail. The Session Manager's
// session-key GC loop starts here (inside sessionmgr.New); every other
// background loop starts in Run.
func New(ctx context.Context, cfg *config.Config, cliPath string) (*Host, error) {
	homeDir := config.ExpandHome(cfg.HomeDir)
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create home dir: %w", err)
	}

	db, err := store.Open(filepath.Join(homeDir, "clade.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	stores := store.NewStores(db)

	reg, err := registry.New(homeDir, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build registry: %w", err)
	}

	caps, err := capability.Probe(ctx, cliPath)
	if err != nil {
		db.Close()
		return nil, clerr.Wrap(clerr.CLIErr, "probe cli capability", err)
	}

	sup, _ := supervisor.New(ctx)

	selfExe, err := os.Executable()
	if err != nil {
		selfExe = cliPath // best-effort fallback, still usable for logging
	}

	mgr := sessionmgr.New(reg, stores, caps, cliPath, selfExe, homeDir, cfg.Tools.Browser, sup)

	deliverers := gatewayboundary.NewRegistry()

	tickInterval := parseDurationOr(cfg.TaskQueue.TickInterval, taskqueue.DefaultTickInterval)
	tq := taskqueue.New(stores, mgr, sup, tickInterval, cfg.TaskQueue.MaxConcurrent)

	scheduler := cron.New(stores, mgr, deliverers, sup, cron.DefaultTickInterval)

	w, err := watcher.New()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build watcher: %w", err)
	}

	return &Host{
		cfg:        cfg,
		homeDir:    homeDir,
		cliPath:    cliPath,
		db:         db,
		stores:     stores,
		reg:        reg,
		caps:       caps,
		sessions:   mgr,
		cron:       scheduler,
		tasks:      tq,
		deliverers: deliverers,
		indexer:    memoryindex.New(stores),
		watch:      w,
		sup:        sup,
	}, nil
}

// Deliverers exposes the channel-adapter registry so cmd/ can register
// any adapters it builds (e.g. a Telegram or web-chat deliverer) before
// Run starts the Cron Scheduler.
func (h *Host) Deliverers() *gatewayboundary.Registry { return h.deliverers }

// Sessions returns the host's Session Manager.
func (h *Host) Sessions() *sessionmgr.Manager { return h.sessions }

// Registry returns the host's agent Registry.
func (h *Host) Registry() *registry.Registry { return h.reg }

// Stores returns the host's Store interfaces.
func (h *Host) Stores() *store.Stores { return h.stores }

// Cron returns the host's Cron Scheduler.
func (h *Host) Cron() *cron.Scheduler { return h.cron }

// Tasks returns the host's Task Queue.
func (h *Host) Tasks() *taskqueue.Queue { return h.tasks }

// Run starts every background component and blocks until ctx is
// cancelled. The reflection driver needs no explicit start: it only acts
// inside sessionmgr.Manager's already-wired callback.
func (h *Host) Run(ctx context.Context) error {
	h.reindexAllAgents(ctx)
	if err := h.startWatcher(); err != nil {
		slog.Error("host.watcher_start_failed", "error", err)
	}

	if err := h.cron.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}
	h.sup.Go("taskqueue.run", func() error {
		return h.tasks.Run(ctx)
	})

	srv, err := h.listenIPC()
	if err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	h.ipcServer = srv
	h.sessions.SetIPCSocket(srv.Path())
	h.registerIPCHandlers(srv)

	h.sup.Go("ipc.serve", func() error {
		return srv.Serve(ctx)
	})

	<-ctx.Done()
	return h.shutdown()
}

func (h *Host) shutdown() error {
	if h.ipcServer != nil {
		_ = h.ipcServer.Close()
	}
	_ = h.watch.Close()
	_ = h.sup.Wait()
	return h.db.Close()
}

func (h *Host) reindexAllAgents(ctx context.Context) {
	for _, id := range h.reg.IDs() {
		if err := h.indexer.ReindexAgent(ctx, h.reg, id); err != nil {
			slog.Error("host.reindex_failed", "agent", id, "error", err)
		}
	}
}

func (h *Host) startWatcher() error {
	configPath := filepath.Join(h.homeDir, "config.json")
	if err := h.watch.WatchConfig(configPath, h.onConfigChanged); err != nil {
		return err
	}

	pendingDir := filepath.Join(h.homeDir, "skills", "pending")
	if err := os.MkdirAll(pendingDir, 0o755); err != nil {
		return err
	}
	if err := h.watch.WatchSkillsPending(pendingDir, h.onSkillDropped); err != nil {
		return err
	}

	for _, b := range h.reg.List() {
		if err := h.watch.WatchAgentMemory(b.ID, b.MemoryDir, h.onMemoryChanged); err != nil {
			slog.Error("host.watch_memory_failed", "agent", b.ID, "error", err)
			continue
		}
	}

	h.watch.Start()
	return nil
}

func (h *Host) onConfigChanged() {
	fresh, err := config.Load(filepath.Join(h.homeDir, "config.json"))
	if err != nil {
		slog.Error("host.config_reload_failed", "error", err)
		return
	}
	h.cfg.ReplaceFrom(fresh)
	for id, spec := range fresh.Agents.List {
		if err := h.reg.Register(id, spec); err != nil {
			slog.Error("host.config_reload_agent_failed", "agent", id, "error", err)
		}
	}
	slog.Info("host.config_reloaded")
}

func (h *Host) onSkillDropped(path string) {
	name := filepath.Base(path)
	ctx := context.Background()
	if err := h.stores.Skills.CreateSkill(ctx, store.Skill{Name: name, Path: path}); err != nil {
		if clerr.KindOf(err) != clerr.Conflict {
			slog.Error("host.skill_register_failed", "path", path, "error", err)
		}
		return
	}
	slog.Info("host.skill_registered", "name", name, "path", path)
}

func (h *Host) onMemoryChanged(agentID, path string) {
	ctx := context.Background()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("host.memory_read_failed", "path", path, "error", err)
		return
	}
	rel := filepath.Join("memory", filepath.Base(path))
	if err := h.indexer.ReindexFile(ctx, agentID, rel, string(data)); err != nil {
		slog.Error("host.memory_reindex_failed", "agent", agentID, "path", path, "error", err)
	}
}

func (h *Host) listenIPC() (*ipc.Server, error) {
	dir := filepath.Join(h.homeDir, "run")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("ipc-%d.sock", os.Getpid()))
	return ipc.Listen(path)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
