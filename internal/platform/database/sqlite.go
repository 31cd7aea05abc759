package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY CHECK (id <> ''),
		display_name TEXT NOT NULL,
		created_at_unix_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		quiz_id TEXT NOT NULL,
		user_id TEXT NOT NULL CHECK (user_id <> ''),
		board TEXT NOT NULL CHECK (board <> ''),
		grade TEXT NOT NULL CHECK (grade <> ''),
		subject TEXT NOT NULL CHECK (subject <> ''),
		topic TEXT NOT NULL CHECK (topic <> ''),
		question TEXT NOT NULL,
		user_answer TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		is_correct INTEGER NOT NULL CHECK (is_correct IN (0, 1)),
		created_at_unix_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		quiz_id TEXT PRIMARY KEY CHECK (quiz_id <> ''),
		user_id TEXT NOT NULL,
		recorded_at_unix_ms INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_topic
		ON quiz_attempts (user_id, board, grade, subject, topic)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_created
		ON quiz_attempts (user_id, created_at_unix_ms DESC)`,
	`CREATE TABLE IF NOT EXISTS activity_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL CHECK (user_id <> ''),
		event_type TEXT NOT NULL CHECK (event_type <> ''),
		data TEXT NOT NULL DEFAULT '{}',
		created_at_unix_ms INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_events_user_created
		ON activity_events (user_id, created_at_unix_ms DESC)`,
}

// OpenSQLite opens (creating if needed) the SQLite database at path,
// applies pragmas and the schema. The pool is limited to one connection
// so pragmas hold for every statement.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrating sqlite: %w", err)
		}
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
