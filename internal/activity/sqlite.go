package activity

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteLogger inserts events into the embedded database.
type SQLiteLogger struct {
	db *sql.DB
}

func NewSQLiteLogger(db *sql.DB) *SQLiteLogger {
	return &SQLiteLogger{db: db}
}

func (l *SQLiteLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("event logger db is nil")
	}
	if err := check(event); err != nil {
		return err
	}
	data, createdAt, err := encode(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO activity_events (session_id, user_id, event_type, data, created_at_unix_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		event.SessionID, event.UserID, event.Type, data, createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CountByType returns how many events of each type a user has produced.
func (l *SQLiteLogger) CountByType(ctx context.Context, userID string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM activity_events WHERE user_id = ? GROUP BY event_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
