package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexAndSearchMemory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.IndexChunk(ctx, MemoryChunk{
		AgentID: "jarvis", FilePath: "MEMORY.md",
		ChunkText: "The user prefers dark roast coffee in the morning.",
	}))
	require.NoError(t, db.IndexChunk(ctx, MemoryChunk{
		AgentID: "jarvis", FilePath: "MEMORY.md",
		ChunkText: "The deployment pipeline runs nightly at 2am.",
	}))
	require.NoError(t, db.IndexChunk(ctx, MemoryChunk{
		AgentID: "scout", FilePath: "MEMORY.md",
		ChunkText: "Coffee is irrelevant to this agent's memory.",
	}))

	results, err := db.SearchMemory(ctx, "jarvis", "coffee", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ChunkText, "coffee")
}

func TestSearchMemoryEmptyQueryReturnsNoResults(t *testing.T) {
	db := newTestDB(t)
	results, err := db.SearchMemory(context.Background(), "jarvis", "!!!", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClearFileRemovesOnlyThatFile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.IndexChunk(ctx, MemoryChunk{AgentID: "jarvis", FilePath: "MEMORY.md", ChunkText: "keep this"}))
	require.NoError(t, db.IndexChunk(ctx, MemoryChunk{AgentID: "jarvis", FilePath: "memory/notes.md", ChunkText: "drop this"}))

	require.NoError(t, db.ClearFile(ctx, "jarvis", "memory/notes.md"))

	remaining, err := db.ListChunks(ctx, "jarvis", "MEMORY.md")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	cleared, err := db.ListChunks(ctx, "jarvis", "memory/notes.md")
	require.NoError(t, err)
	assert.Empty(t, cleared)
}
