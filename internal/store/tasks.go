package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus enumerates a deferred task's lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskDone      TaskStatus = "done"
	TaskCancelled TaskStatus = "cancelled"
	TaskFailed    TaskStatus = "failed"
)

// DeferredTask is a one-shot prompt scheduled to fire later.
type DeferredTask struct {
	ID          string
	AgentID     string
	SessionID   string
	Prompt      string
	Description string
	ExecuteAt   time.Time
	Status      TaskStatus
	Error       string
	CreatedAt   time.Time
}

// TaskStore persists the deferred task queue.
type TaskStore interface {
	EnqueueTask(ctx context.Context, t DeferredTask) (DeferredTask, error)
	GetTask(ctx context.Context, id string) (DeferredTask, error)
	ListDueTasks(ctx context.Context, now time.Time) ([]DeferredTask, error)
	ListTasksByAgent(ctx context.Context, agentID string) ([]DeferredTask, error)
	ListAllTasks(ctx context.Context) ([]DeferredTask, error)
	MarkTaskRunning(ctx context.Context, id string) error
	MarkTaskDone(ctx context.Context, id string) error
	MarkTaskFailed(ctx context.Context, id string, errMsg string) error
	CancelTask(ctx context.Context, id string) error
}

func (db *DB) EnqueueTask(ctx context.Context, t DeferredTask) (DeferredTask, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO deferred_tasks (id, agent_id, session_id, prompt, description, execute_at, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		t.ID, t.AgentID, nullable(t.SessionID), t.Prompt, t.Description,
		t.ExecuteAt.UnixMilli(), string(t.Status), t.CreatedAt.UnixMilli())
	if err != nil {
		return DeferredTask{}, storeErr("enqueue task", err)
	}
	return t, nil
}

func (db *DB) GetTask(ctx context.Context, id string) (DeferredTask, error) {
	return scanTask(db.sql.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, id))
}

func (db *DB) ListDueTasks(ctx context.Context, now time.Time) ([]DeferredTask, error) {
	rows, err := db.sql.QueryContext(ctx, taskSelect+` WHERE status = 'pending' AND execute_at <= ? ORDER BY execute_at`, now.UnixMilli())
	if err != nil {
		return nil, storeErr("list due tasks", err)
	}
	return scanTasks(rows)
}

func (db *DB) ListTasksByAgent(ctx context.Context, agentID string) ([]DeferredTask, error) {
	rows, err := db.sql.QueryContext(ctx, taskSelect+` WHERE agent_id = ? ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, storeErr("list tasks by agent", err)
	}
	return scanTasks(rows)
}

// ListAllTasks returns every task across all agents, most recent first,
// for taskqueue.list calls that omit agentId.
func (db *DB) ListAllTasks(ctx context.Context) ([]DeferredTask, error) {
	rows, err := db.sql.QueryContext(ctx, taskSelect+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeErr("list all tasks", err)
	}
	return scanTasks(rows)
}

func (db *DB) MarkTaskRunning(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE deferred_tasks SET status = 'running' WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return storeErr("mark task running", err)
	}
	return requireAffected(res, "pending task", id)
}

func (db *DB) MarkTaskDone(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE deferred_tasks SET status = 'done' WHERE id = ?`, id)
	if err != nil {
		return storeErr("mark task done", err)
	}
	return requireAffected(res, "task", id)
}

func (db *DB) MarkTaskFailed(ctx context.Context, id string, errMsg string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE deferred_tasks SET status = 'failed', error = ? WHERE id = ?`, errMsg, id)
	if err != nil {
		return storeErr("mark task failed", err)
	}
	return requireAffected(res, "task", id)
}

// CancelTask transitions pending → cancelled atomically; running and
// terminal states reject the cancel (zero rows affected → NotFound, whose
// `pending task "<id>" not found` text the IPC handler passes through).
func (db *DB) CancelTask(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE deferred_tasks SET status = 'cancelled' WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return storeErr("cancel task", err)
	}
	return requireAffected(res, "pending task", id)
}

const taskSelect = `SELECT id, agent_id, session_id, prompt, description, execute_at, status, error, created_at FROM deferred_tasks`

func scanTask(row *sql.Row) (DeferredTask, error) {
	var t DeferredTask
	var sessionID, errMsg sql.NullString
	var executeAt, createdAt int64
	var status string
	if err := row.Scan(&t.ID, &t.AgentID, &sessionID, &t.Prompt, &t.Description, &executeAt, &status, &errMsg, &createdAt); err != nil {
		return DeferredTask{}, storeErr("task not found", err)
	}
	t.SessionID, t.Error = sessionID.String, errMsg.String
	t.Status = TaskStatus(status)
	t.ExecuteAt = time.UnixMilli(executeAt)
	t.CreatedAt = time.UnixMilli(createdAt)
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]DeferredTask, error) {
	defer rows.Close()
	var out []DeferredTask
	for rows.Next() {
		var t DeferredTask
		var sessionID, errMsg sql.NullString
		var executeAt, createdAt int64
		var status string
		if err := rows.Scan(&t.ID, &t.AgentID, &sessionID, &t.Prompt, &t.Description, &executeAt, &status, &errMsg, &createdAt); err != nil {
			return nil, storeErr("scan task", err)
		}
		t.SessionID, t.Error = sessionID.String, errMsg.String
		t.Status = TaskStatus(status)
		t.ExecuteAt = time.UnixMilli(executeAt)
		t.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
