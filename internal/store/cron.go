package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CronJob is a recurring prompt expressed as a cron expression.
type CronJob struct {
	ID         string
	Name       string
	Schedule   string
	AgentID    string
	Prompt     string
	DeliverTo  string
	Enabled    bool
	LastRunAt  *time.Time
}

// CronStore persists cron job definitions.
type CronStore interface {
	CreateCronJob(ctx context.Context, j CronJob) (CronJob, error)
	GetCronJobByID(ctx context.Context, id string) (CronJob, error)
	GetCronJobByName(ctx context.Context, name string) (CronJob, error)
	ListCronJobs(ctx context.Context) ([]CronJob, error)
	EnableCronJob(ctx context.Context, id string) error
	DisableCronJob(ctx context.Context, id string) error
	TouchCronLastRun(ctx context.Context, id string, at time.Time) error
	DeleteCronJob(ctx context.Context, id string) error
	UpdateCronJob(ctx context.Context, j CronJob) error
}

func (db *DB) CreateCronJob(ctx context.Context, j CronJob) (CronJob, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO cron_jobs (id, name, schedule, agent_id, prompt, deliver_to, enabled, last_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		j.ID, j.Name, j.Schedule, j.AgentID, j.Prompt, nullable(j.DeliverTo), boolToInt(j.Enabled))
	if err != nil {
		if isUniqueViolation(err) {
			return CronJob{}, conflictf("cron job named %q already exists", j.Name)
		}
		return CronJob{}, storeErr("create cron job", err)
	}
	return j, nil
}

func (db *DB) GetCronJobByID(ctx context.Context, id string) (CronJob, error) {
	return scanCronJob(db.sql.QueryRowContext(ctx, cronSelect+` WHERE id = ?`, id))
}

func (db *DB) GetCronJobByName(ctx context.Context, name string) (CronJob, error) {
	return scanCronJob(db.sql.QueryRowContext(ctx, cronSelect+` WHERE name = ?`, name))
}

func (db *DB) ListCronJobs(ctx context.Context) ([]CronJob, error) {
	rows, err := db.sql.QueryContext(ctx, cronSelect+` ORDER BY name`)
	if err != nil {
		return nil, storeErr("list cron jobs", err)
	}
	defer rows.Close()

	var out []CronJob
	for rows.Next() {
		var j CronJob
		var deliverTo sql.NullString
		var lastRunAt sql.NullInt64
		var enabled int
		if err := rows.Scan(&j.ID, &j.Name, &j.Schedule, &j.AgentID, &j.Prompt, &deliverTo, &enabled, &lastRunAt); err != nil {
			return nil, storeErr("scan cron job", err)
		}
		j.DeliverTo = deliverTo.String
		j.Enabled = enabled != 0
		if lastRunAt.Valid {
			t := time.UnixMilli(lastRunAt.Int64)
			j.LastRunAt = &t
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (db *DB) EnableCronJob(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE cron_jobs SET enabled = 1 WHERE id = ?`, id)
	if err != nil {
		return storeErr("enable cron job", err)
	}
	return requireAffected(res, "cron job", id)
}

func (db *DB) DisableCronJob(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE cron_jobs SET enabled = 0 WHERE id = ?`, id)
	if err != nil {
		return storeErr("disable cron job", err)
	}
	return requireAffected(res, "cron job", id)
}

func (db *DB) TouchCronLastRun(ctx context.Context, id string, at time.Time) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE cron_jobs SET last_run_at = ? WHERE id = ?`, at.UnixMilli(), id)
	if err != nil {
		return storeErr("touch cron last run", err)
	}
	return requireAffected(res, "cron job", id)
}

func (db *DB) DeleteCronJob(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete cron job", err)
	}
	return requireAffected(res, "cron job", id)
}

func (db *DB) UpdateCronJob(ctx context.Context, j CronJob) error {
	res, err := db.sql.ExecContext(ctx, `
		UPDATE cron_jobs SET name = ?, schedule = ?, agent_id = ?, prompt = ?, deliver_to = ?, enabled = ?
		WHERE id = ?`,
		j.Name, j.Schedule, j.AgentID, j.Prompt, nullable(j.DeliverTo), boolToInt(j.Enabled), j.ID)
	if err != nil {
		return storeErr("update cron job", err)
	}
	return requireAffected(res, "cron job", j.ID)
}

const cronSelect = `SELECT id, name, schedule, agent_id, prompt, deliver_to, enabled, last_run_at FROM cron_jobs`

func scanCronJob(row *sql.Row) (CronJob, error) {
	var j CronJob
	var deliverTo sql.NullString
	var lastRunAt sql.NullInt64
	var enabled int
	if err := row.Scan(&j.ID, &j.Name, &j.Schedule, &j.AgentID, &j.Prompt, &deliverTo, &enabled, &lastRunAt); err != nil {
		return CronJob{}, storeErr("cron job not found", err)
	}
	j.DeliverTo = deliverTo.String
	j.Enabled = enabled != 0
	if lastRunAt.Valid {
		t := time.UnixMilli(lastRunAt.Int64)
		j.LastRunAt = &t
	}
	return j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
