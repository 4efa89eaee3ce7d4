package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is portable between sqlite and postgres: no AUTOINCREMENT, booleans
// stored as integers and timestamps as unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		gr_no TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL,
		class_name TEXT NOT NULL,
		division TEXT NOT NULL,
		practical_batch TEXT NOT NULL DEFAULT '',
		feedback_given_theory INTEGER NOT NULL DEFAULT 0,
		feedback_given_practical INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS faculties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL,
		class_name TEXT NOT NULL DEFAULT '',
		division TEXT NOT NULL DEFAULT '',
		is_practical INTEGER NOT NULL DEFAULT 0,
		is_elective INTEGER NOT NULL DEFAULT 0,
		practical_batches TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS feedback_records (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		department TEXT NOT NULL,
		class_name TEXT NOT NULL,
		division TEXT NOT NULL,
		feedback_round TEXT NOT NULL,
		submitted_at BIGINT NOT NULL,
		theory_json TEXT NOT NULL DEFAULT '[]',
		practical_json TEXT NOT NULL DEFAULT '[]',
		library_json TEXT NOT NULL DEFAULT '{}',
		facilities_json TEXT NOT NULL DEFAULT '{}',
		UNIQUE (student_id, feedback_round)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_records_scope
		ON feedback_records (department, class_name, division, feedback_round)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_records_submitted_at
		ON feedback_records (submitted_at)`,
	`CREATE TABLE IF NOT EXISTS app_config (
		config_key TEXT PRIMARY KEY,
		config_value TEXT NOT NULL
	)`,
}

// Migrate creates the tables used by the repositories if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
