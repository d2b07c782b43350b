package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/clade/internal/clerr"
)

// SessionStatus enumerates the session lifecycle per spec §4.11's state machine.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionIdle       SessionStatus = "idle"
	SessionTerminated SessionStatus = "terminated"
)

// Session is the durable binding between an (agentId, channel?, userId?, chatId?)
// tuple and the opaque session id the CLI assigns.
type Session struct {
	ID              string
	AgentID         string
	Channel         string
	ChannelUserID   string
	ChatID          string
	Status          SessionStatus
	CreatedAt       time.Time
	LastActiveAt    time.Time
	ReflectionTurns int
}

// SessionStore is the narrow persistence interface the Session Manager and
// IPC handlers depend on.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	FindActiveSession(ctx context.Context, agentID, channel, userID, chatID string) (Session, error)
	ListSessions(ctx context.Context, agentID string) ([]Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error
	TouchSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	IncrementReflectionTurns(ctx context.Context, id string) (int, error)
	ResetReflectionTurns(ctx context.Context, id string) error
}

// NewSessionID mints a locally generated id when the CLI returns none.
func NewSessionID() string {
	return uuid.NewString()
}

func (db *DB) CreateSession(ctx context.Context, s Session) error {
	if s.Status == "" {
		s.Status = SessionActive
	}
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_id, channel, channel_user_id, chat_id, status, created_at, last_active_at, reflection_turns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		s.ID, s.AgentID, nullable(s.Channel), nullable(s.ChannelUserID), nullable(s.ChatID),
		string(s.Status), s.CreatedAt.UnixMilli(), s.LastActiveAt.UnixMilli())
	if err != nil {
		return storeErr("create session", err)
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (Session, error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT id, agent_id, channel, channel_user_id, chat_id, status, created_at, last_active_at, reflection_turns
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// FindActiveSession returns the most-recently-active active-status row for
// the tuple. Ordering by last_active_at DESC is a safety net: the invariant
// is that there is never more than one.
func (db *DB) FindActiveSession(ctx context.Context, agentID, channel, userID, chatID string) (Session, error) {
	row := db.sql.QueryRowContext(ctx, `
		SELECT id, agent_id, channel, channel_user_id, chat_id, status, created_at, last_active_at, reflection_turns
		FROM sessions
		WHERE agent_id = ? AND channel IS ? AND channel_user_id IS ? AND chat_id IS ? AND status = 'active'
		ORDER BY last_active_at DESC
		LIMIT 1`,
		agentID, nullable(channel), nullable(userID), nullable(chatID))
	return scanSession(row)
}

func (db *DB) ListSessions(ctx context.Context, agentID string) ([]Session, error) {
	var rows *sql.Rows
	var err error
	if agentID == "" {
		rows, err = db.sql.QueryContext(ctx, `
			SELECT id, agent_id, channel, channel_user_id, chat_id, status, created_at, last_active_at, reflection_turns
			FROM sessions ORDER BY last_active_at DESC`)
	} else {
		rows, err = db.sql.QueryContext(ctx, `
			SELECT id, agent_id, channel, channel_user_id, chat_id, status, created_at, last_active_at, reflection_turns
			FROM sessions WHERE agent_id = ? ORDER BY last_active_at DESC`, agentID)
	}
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, storeErr("scan session", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return storeErr("update session status", err)
	}
	return requireAffected(res, "session", id)
}

func (db *DB) TouchSession(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE sessions SET last_active_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	if err != nil {
		return storeErr("touch session", err)
	}
	return requireAffected(res, "session", id)
}

func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete session", err)
	}
	return requireAffected(res, "session", id)
}

// IncrementReflectionTurns bumps the per-session reflection counter and
// returns the new value, used by the Reflection Driver's "every Nth turn" gate.
func (db *DB) IncrementReflectionTurns(ctx context.Context, id string) (int, error) {
	res, err := db.sql.ExecContext(ctx, `UPDATE sessions SET reflection_turns = reflection_turns + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, storeErr("increment reflection turns", err)
	}
	if err := requireAffected(res, "session", id); err != nil {
		return 0, err
	}
	var n int
	if err := db.sql.QueryRowContext(ctx, `SELECT reflection_turns FROM sessions WHERE id = ?`, id).Scan(&n); err != nil {
		return 0, storeErr("read reflection turns", err)
	}
	return n, nil
}

func (db *DB) ResetReflectionTurns(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE sessions SET reflection_turns = 0 WHERE id = ?`, id)
	if err != nil {
		return storeErr("reset reflection turns", err)
	}
	return requireAffected(res, "session", id)
}

func scanSession(row *sql.Row) (Session, error) {
	var s Session
	var channel, userID, chatID sql.NullString
	var status string
	var createdAt, lastActiveAt int64
	err := row.Scan(&s.ID, &s.AgentID, &channel, &userID, &chatID, &status, &createdAt, &lastActiveAt, &s.ReflectionTurns)
	if err != nil {
		return Session{}, storeErr("session not found", err)
	}
	s.Channel, s.ChannelUserID, s.ChatID = channel.String, userID.String, chatID.String
	s.Status = SessionStatus(status)
	s.CreatedAt = time.UnixMilli(createdAt)
	s.LastActiveAt = time.UnixMilli(lastActiveAt)
	return s, nil
}

func scanSessionRows(rows *sql.Rows) (Session, error) {
	var s Session
	var channel, userID, chatID sql.NullString
	var status string
	var createdAt, lastActiveAt int64
	err := rows.Scan(&s.ID, &s.AgentID, &channel, &userID, &chatID, &status, &createdAt, &lastActiveAt, &s.ReflectionTurns)
	if err != nil {
		return Session{}, err
	}
	s.Channel, s.ChannelUserID, s.ChatID = channel.String, userID.String, chatID.String
	s.Status = SessionStatus(status)
	s.CreatedAt = time.UnixMilli(createdAt)
	s.LastActiveAt = time.UnixMilli(lastActiveAt)
	return s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return clerr.Wrap(clerr.StoreErr, "rows affected", err)
	}
	if n == 0 {
		return clerr.NotFoundf("%s %q not found", kind, id)
	}
	return nil
}
