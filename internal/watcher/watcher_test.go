package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestHandleIgnoresEventsThatAreNotWriteOrCreate(t *testing.T) {
	w := newTestWatcher(t)
	w.configPath = "/home/clade/config.json"
	called := false
	w.onConfigChange = func() { called = true }

	w.handle(fsnotify.Event{Name: w.configPath, Op: fsnotify.Chmod})
	assert.False(t, called)

	w.handle(fsnotify.Event{Name: w.configPath, Op: fsnotify.Remove})
	assert.False(t, called)
}

func TestHandleDispatchesConfigChange(t *testing.T) {
	w := newTestWatcher(t)
	w.configPath = "/home/clade/config.json"
	var seen string
	w.onConfigChange = func() { seen = "fired" }

	w.handle(fsnotify.Event{Name: w.configPath, Op: fsnotify.Write})
	assert.Equal(t, "fired", seen)
}

func TestHandleDispatchesSkillDropIgnoringDotfiles(t *testing.T) {
	w := newTestWatcher(t)
	w.pendingDir = "/home/clade/skills/pending"
	var got string
	w.onPendingSkill = func(path string) { got = path }

	w.handle(fsnotify.Event{Name: "/home/clade/skills/pending/.tmp.swp", Op: fsnotify.Create})
	assert.Empty(t, got, "dotfiles should be ignored")

	w.handle(fsnotify.Event{Name: "/home/clade/skills/pending/weather.json", Op: fsnotify.Create})
	assert.Equal(t, "/home/clade/skills/pending/weather.json", got)
}

func TestHandleDispatchesMemoryChangeOnlyForMarkdown(t *testing.T) {
	w := newTestWatcher(t)
	w.memoryRoots["/home/clade/agents/jarvis/memory"] = "jarvis"
	var gotAgent, gotPath string
	w.onMemoryChange = func(agentID, path string) { gotAgent, gotPath = agentID, path }

	w.handle(fsnotify.Event{Name: "/home/clade/agents/jarvis/memory/notes.txt", Op: fsnotify.Write})
	assert.Empty(t, gotAgent, "non-markdown files should be ignored")

	w.handle(fsnotify.Event{Name: "/home/clade/agents/jarvis/memory/notes.md", Op: fsnotify.Write})
	assert.Equal(t, "jarvis", gotAgent)
	assert.Equal(t, "/home/clade/agents/jarvis/memory/notes.md", gotPath)
}

func TestHandleIgnoresEventsOutsideAnyWatchedRoot(t *testing.T) {
	w := newTestWatcher(t)
	w.configPath = "/home/clade/config.json"
	w.pendingDir = "/home/clade/skills/pending"
	w.memoryRoots["/home/clade/agents/jarvis/memory"] = "jarvis"

	assert.NotPanics(t, func() {
		w.handle(fsnotify.Event{Name: "/some/unrelated/path.md", Op: fsnotify.Write})
	})
}
