// Package memoryindex windows an agent's markdown memory files into
// overlapping chunks and keeps the Store's FTS5 index (internal/store's
// MemoryStore) in sync with them. Grounded in the teacher's
// internal/memory chunking pass (retrieved for this exercise, the version
// that split transcripts into bm25-searchable windows before indexing),
// generalized here from chat-transcript windows to markdown-file windows
// over an agent's memory directory and MEMORY.md.
package memoryindex

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/store"
)

// WindowSize and Overlap are §3's Data Model targets for MemoryChunk:
// 1,600-character windows with a 320-character trailing overlap so a
// search match near a window boundary still surfaces the surrounding
// context.
const (
	WindowSize = 1600
	Overlap    = 320
)

// Window is one slice of a file's content plus its byte offsets.
type Window struct {
	Text  string
	Start int
	End   int
}

// Windows splits content into overlapping Windows of size, each
// subsequent window starting overlap bytes before the previous one ended.
// A content shorter than size yields exactly one Window.
func Windows(content string, size, overlap int) []Window {
	if content == "" {
		return nil
	}
	if overlap >= size {
		overlap = size / 2
	}
	step := size - overlap

	var out []Window
	for start := 0; start < len(content); start += step {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		out = append(out, Window{Text: content[start:end], Start: start, End: end})
		if end == len(content) {
			break
		}
	}
	return out
}

// Indexer drives ReindexFile/ReindexAgent against a Store.
type Indexer struct {
	stores *store.Stores
}

// New constructs an Indexer.
func New(stores *store.Stores) *Indexer {
	return &Indexer{stores: stores}
}

// ReindexFile replaces every indexed chunk for filePath with a fresh
// windowing of content. Called whenever the watcher observes that file
// change, and once per file during ReindexAgent's startup sweep.
func (idx *Indexer) ReindexFile(ctx context.Context, agentID, filePath, content string) error {
	if err := idx.stores.Memory.ClearFile(ctx, agentID, filePath); err != nil {
		return err
	}
	for _, w := range Windows(content, WindowSize, Overlap) {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		if err := idx.stores.Memory.IndexChunk(ctx, store.MemoryChunk{
			AgentID:    agentID,
			FilePath:   filePath,
			ChunkText:  w.Text,
			ChunkStart: w.Start,
			ChunkEnd:   w.End,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ReindexAgent walks agentID's MEMORY.md and every file under its memory
// directory, reindexing each. Intended as a startup sweep so the FTS
// index reflects on-disk state even for files the watcher missed while
// the host was down.
func (idx *Indexer) ReindexAgent(ctx context.Context, reg *registry.Registry, agentID string) error {
	bundle, err := reg.Get(agentID)
	if err != nil {
		return err
	}

	memoryDoc, err := reg.ReadMemory(agentID)
	if err != nil {
		return err
	}
	if memoryDoc != "" {
		if err := idx.ReindexFile(ctx, agentID, "MEMORY.md", memoryDoc); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(bundle.MemoryDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(bundle.MemoryDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := idx.ReindexFile(ctx, agentID, filepath.Join("memory", e.Name()), string(data)); err != nil {
			return err
		}
	}
	return nil
}
