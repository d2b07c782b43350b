// Package watcher wires github.com/fsnotify/fsnotify to three filesystem
// surfaces the host needs to react to without polling: an agent's memory
// directory (reindexed into the Store's FTS5 index), the skills/pending
// drop directory (hot-registered into the skills table), and config.json
// (reloaded in place). Grounded in the teacher's cmd/config_watch.go
// (retrieved for this exercise, the version that reloaded a single config
// file on fsnotify.Write), generalized here to a multi-root watcher that
// also covers per-agent memory directories and the skills drop directory.
package watcher

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher owns one fsnotify.Watcher and dispatches its events to whichever
// callback matches the changed path.
type Watcher struct {
	fsw *fsnotify.Watcher

	configPath     string
	pendingDir     string
	onConfigChange func()
	onPendingSkill func(path string)
	onMemoryChange func(agentID, path string)

	memoryRoots map[string]string // watched dir -> agent id
}

// New creates a Watcher backed by a fresh fsnotify.Watcher. Callers add
// watch roots with WatchConfig/WatchSkillsPending/WatchAgentMemory before
// calling Start.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, memoryRoots: make(map[string]string)}, nil
}

// WatchConfig arms the config.json reload callback for the file at path.
func (w *Watcher) WatchConfig(path string, onChange func()) error {
	w.configPath = path
	w.onConfigChange = onChange
	return w.fsw.Add(filepath.Dir(path))
}

// WatchSkillsPending arms the skill hot-registration callback for dir
// (conventionally homeDir/skills/pending).
func (w *Watcher) WatchSkillsPending(dir string, onFile func(path string)) error {
	w.pendingDir = dir
	w.onPendingSkill = onFile
	return w.fsw.Add(dir)
}

// WatchAgentMemory arms the reindex callback for agentID's memory
// directory. onChange is called once per create/write event with the
// owning agent id and the changed file's path.
func (w *Watcher) WatchAgentMemory(agentID, dir string, onChange func(agentID, path string)) error {
	w.onMemoryChange = onChange
	w.memoryRoots[dir] = agentID
	return w.fsw.Add(dir)
}

// Start runs the dispatch loop on its own goroutine until Close is called.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher.fsnotify_error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if w.configPath != "" && ev.Name == w.configPath {
		slog.Info("watcher.config_changed", "path", ev.Name)
		w.onConfigChange()
		return
	}

	if w.pendingDir != "" && filepath.Dir(ev.Name) == w.pendingDir {
		if strings.HasPrefix(filepath.Base(ev.Name), ".") {
			return // ignore editor swap/temp files
		}
		slog.Info("watcher.skill_dropped", "path", ev.Name)
		w.onPendingSkill(ev.Name)
		return
	}

	dir := filepath.Dir(ev.Name)
	if agentID, ok := w.memoryRoots[dir]; ok {
		if !strings.HasSuffix(ev.Name, ".md") {
			return
		}
		w.onMemoryChange(agentID, ev.Name)
	}
}

// Close stops the loop and releases the underlying fsnotify.Watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
