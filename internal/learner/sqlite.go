package learner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLiteRegistry stores learners in an embedded SQLite database opened with
// database.OpenSQLite.
type SQLiteRegistry struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRegistry creates a SQLite-backed registry.
func NewSQLiteRegistry(db *sql.DB) (*SQLiteRegistry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &SQLiteRegistry{db: db, now: time.Now}, nil
}

func (r *SQLiteRegistry) Login(ctx context.Context, username string) (Learner, bool, error) {
	id, err := NormalizeUsername(username)
	if err != nil {
		return Learner{}, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, created_at_unix_ms) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, strings.TrimSpace(username), r.now().UnixMilli(),
	)
	if err != nil {
		return Learner{}, false, fmt.Errorf("register learner: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Learner{}, false, fmt.Errorf("register learner: %w", err)
	}

	var (
		l         Learner
		createdMS int64
	)
	if err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, created_at_unix_ms FROM users WHERE id = ?`,
		id,
	).Scan(&l.ID, &l.DisplayName, &createdMS); err != nil {
		return Learner{}, false, fmt.Errorf("load learner: %w", err)
	}
	l.CreatedAt = time.UnixMilli(createdMS).UTC()

	return l, inserted == 1, nil
}
