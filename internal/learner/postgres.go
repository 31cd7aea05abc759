package learner

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry stores learners in the users table.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a PostgreSQL-backed registry.
func NewPostgresRegistry(pool *pgxpool.Pool) (*PostgresRegistry, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresRegistry{pool: pool}, nil
}

func (r *PostgresRegistry) Login(ctx context.Context, username string) (Learner, bool, error) {
	id, err := NormalizeUsername(username)
	if err != nil {
		return Learner{}, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, display_name) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		id, strings.TrimSpace(username),
	)
	if err != nil {
		return Learner{}, false, fmt.Errorf("register learner: %w", err)
	}

	var l Learner
	if err := r.pool.QueryRow(ctx,
		`SELECT id, display_name, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.DisplayName, &l.CreatedAt); err != nil {
		return Learner{}, false, fmt.Errorf("load learner: %w", err)
	}

	return l, cmd.RowsAffected() == 1, nil
}
