package database

import (
	"context"
	"fmt"
)

// postgresSchema is applied in order on every start. Statements must stay
// idempotent.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY CHECK (id <> ''),
		display_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id BIGSERIAL PRIMARY KEY,
		quiz_id TEXT NOT NULL,
		user_id TEXT NOT NULL CHECK (user_id <> ''),
		board TEXT NOT NULL CHECK (board <> ''),
		grade TEXT NOT NULL CHECK (grade <> ''),
		subject TEXT NOT NULL CHECK (subject <> ''),
		topic TEXT NOT NULL CHECK (topic <> ''),
		question TEXT NOT NULL,
		user_answer TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		quiz_id TEXT PRIMARY KEY CHECK (quiz_id <> ''),
		user_id TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_topic
		ON quiz_attempts (user_id, board, grade, subject, topic)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_created
		ON quiz_attempts (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS activity_events (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL CHECK (user_id <> ''),
		event_type TEXT NOT NULL CHECK (event_type <> ''),
		data JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_events_user_created
		ON activity_events (user_id, created_at DESC)`,
}

// Migrate creates the tables and indexes the stores depend on.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}
	return nil
}
