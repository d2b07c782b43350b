package store

import (
	"context"
	"database/sql"
)

// SkillStatus enumerates a skill's approval state.
type SkillStatus string

const (
	SkillPending  SkillStatus = "pending"
	SkillActive   SkillStatus = "active"
	SkillDisabled SkillStatus = "disabled"
)

// Skill is a named, optionally-configured capability an agent can be assigned.
type Skill struct {
	Name   string
	Status SkillStatus
	Path   string
	Config string // opaque JSON, caller-defined shape
}

// SkillStore persists the skills registry.
type SkillStore interface {
	CreateSkill(ctx context.Context, s Skill) error
	GetSkill(ctx context.Context, name string) (Skill, error)
	ListSkills(ctx context.Context) ([]Skill, error)
	ApproveSkill(ctx context.Context, name string) error
	DisableSkill(ctx context.Context, name string) error
	DeleteSkill(ctx context.Context, name string) error
}

func (db *DB) CreateSkill(ctx context.Context, s Skill) error {
	if s.Status == "" {
		s.Status = SkillPending
	}
	_, err := db.sql.ExecContext(ctx, `
		INSERT INTO skills (name, status, path, config) VALUES (?, ?, ?, ?)`,
		s.Name, string(s.Status), s.Path, nullable(s.Config))
	if err != nil {
		if isUniqueViolation(err) {
			return conflictf("skill %q already exists", s.Name)
		}
		return storeErr("create skill", err)
	}
	return nil
}

func (db *DB) GetSkill(ctx context.Context, name string) (Skill, error) {
	return scanSkill(db.sql.QueryRowContext(ctx, skillSelect+` WHERE name = ?`, name))
}

func (db *DB) ListSkills(ctx context.Context) ([]Skill, error) {
	rows, err := db.sql.QueryContext(ctx, skillSelect+` ORDER BY name`)
	if err != nil {
		return nil, storeErr("list skills", err)
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var s Skill
		var status string
		var config sql.NullString
		if err := rows.Scan(&s.Name, &status, &s.Path, &config); err != nil {
			return nil, storeErr("scan skill", err)
		}
		s.Status = SkillStatus(status)
		s.Config = config.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) ApproveSkill(ctx context.Context, name string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE skills SET status = 'active' WHERE name = ?`, name)
	if err != nil {
		return storeErr("approve skill", err)
	}
	return requireAffected(res, "skill", name)
}

func (db *DB) DisableSkill(ctx context.Context, name string) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE skills SET status = 'disabled' WHERE name = ?`, name)
	if err != nil {
		return storeErr("disable skill", err)
	}
	return requireAffected(res, "skill", name)
}

func (db *DB) DeleteSkill(ctx context.Context, name string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM skills WHERE name = ?`, name)
	if err != nil {
		return storeErr("delete skill", err)
	}
	return requireAffected(res, "skill", name)
}

const skillSelect = `SELECT name, status, path, config FROM skills`

func scanSkill(row *sql.Row) (Skill, error) {
	var s Skill
	var status string
	var config sql.NullString
	if err := row.Scan(&s.Name, &status, &s.Path, &config); err != nil {
		return Skill{}, storeErr("skill not found", err)
	}
	s.Status = SkillStatus(status)
	s.Config = config.String
	return s, nil
}
