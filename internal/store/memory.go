package store

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"
)

// MemoryChunk is a windowed slice of an agent's markdown files, indexed for
// full-text search.
type MemoryChunk struct {
	ID         int64
	AgentID    string
	FilePath   string
	ChunkText  string
	ChunkStart int
	ChunkEnd   int
	UpdatedAt  time.Time
}

// MemoryStore indexes and searches agent memory chunks.
type MemoryStore interface {
	IndexChunk(ctx context.Context, c MemoryChunk) error
	ClearFile(ctx context.Context, agentID, filePath string) error
	SearchMemory(ctx context.Context, agentID, query string, limit int) ([]MemoryChunk, error)
	ListChunks(ctx context.Context, agentID, filePath string) ([]MemoryChunk, error)
}

func (db *DB) IndexChunk(ctx context.Context, c MemoryChunk) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO memory_chunks (agent_id, file_path, chunk_text, chunk_start, chunk_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.AgentID, c.FilePath, c.ChunkText, c.ChunkStart, c.ChunkEnd, c.UpdatedAt.UnixMilli())
	if err != nil {
		return storeErr("index memory chunk", err)
	}
	return nil
}

// ClearFile removes all indexed chunks for a file, e.g. before reindexing
// after a file change.
func (db *DB) ClearFile(ctx context.Context, agentID, filePath string) error {
	_, err := db.sql.ExecContext(ctx, `DELETE FROM memory_chunks WHERE agent_id = ? AND file_path = ?`, agentID, filePath)
	if err != nil {
		return storeErr("clear memory file", err)
	}
	return nil
}

var ftsTokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// ftsQuery tokenizes the raw query and wraps each token as a quoted FTS5
// prefix phrase, so punctuation in the input can't break the MATCH syntax
// and partial-word queries still hit.
func ftsQuery(raw string) string {
	tokens := ftsTokenRe.FindAllString(raw, -1)
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"*`
	}
	return strings.Join(quoted, " ")
}

// SearchMemory returns chunks ranked by FTS5 relevance (bm25), most relevant
// first.
func (db *DB) SearchMemory(ctx context.Context, agentID, query string, limit int) ([]MemoryChunk, error) {
	q := ftsQuery(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.sql.QueryContext(ctx, `
		SELECT c.id, c.agent_id, c.file_path, c.chunk_text, c.chunk_start, c.chunk_end, c.updated_at
		FROM memory_fts f
		JOIN memory_chunks c ON c.id = f.rowid
		WHERE f.memory_fts MATCH ? AND c.agent_id = ?
		ORDER BY bm25(f)
		LIMIT ?`, q, agentID, limit)
	if err != nil {
		return nil, storeErr("search memory", err)
	}
	return scanChunks(rows)
}

func (db *DB) ListChunks(ctx context.Context, agentID, filePath string) ([]MemoryChunk, error) {
	rows, err := db.sql.QueryContext(ctx, `
		SELECT id, agent_id, file_path, chunk_text, chunk_start, chunk_end, updated_at
		FROM memory_chunks WHERE agent_id = ? AND file_path = ? ORDER BY chunk_start`, agentID, filePath)
	if err != nil {
		return nil, storeErr("list memory chunks", err)
	}
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]MemoryChunk, error) {
	defer rows.Close()
	var out []MemoryChunk
	for rows.Next() {
		var c MemoryChunk
		var updatedAt int64
		if err := rows.Scan(&c.ID, &c.AgentID, &c.FilePath, &c.ChunkText, &c.ChunkStart, &c.ChunkEnd, &updatedAt); err != nil {
			return nil, storeErr("scan memory chunk", err)
		}
		c.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
