package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/taleem/internal/curriculum"
)

// PostgresStore keeps attempts in the quiz_attempts table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed attempt store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) RecordBatch(ctx context.Context, attempts []Attempt) error {
	if len(attempts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistErr("record batch", fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A concurrent claim of the same id blocks here until the other
	// transaction settles, so only one batch per quiz can commit.
	for _, id := range quizIDs(attempts) {
		tag, err := tx.Exec(ctx,
			`INSERT INTO quizzes (quiz_id, user_id) VALUES ($1, $2) ON CONFLICT (quiz_id) DO NOTHING`,
			id, attempts[0].UserID,
		)
		if err != nil {
			return persistErr("record batch", fmt.Errorf("claim quiz %s: %w", id, err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateQuiz, id)
		}
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, a := range attempts {
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		batch.Queue(
			`INSERT INTO quiz_attempts
			 (quiz_id, user_id, board, grade, subject, topic, question, user_answer, correct_answer, is_correct, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.QuizID, a.UserID, a.Board, a.Grade, a.Subject, a.Topic,
			a.Question, a.UserAnswer, a.CorrectAnswer, a.IsCorrect, createdAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range attempts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return persistErr("record batch", fmt.Errorf("insert attempt %d: %w", i, err))
		}
	}
	if err := br.Close(); err != nil {
		return persistErr("record batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return persistErr("record batch", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *PostgresStore) TopicStats(ctx context.Context, userID string, path curriculum.SubjectPath) ([]TopicStat, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT topic, COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		 FROM quiz_attempts
		 WHERE user_id = $1 AND board = $2 AND grade = $3 AND subject = $4
		 GROUP BY topic
		 ORDER BY topic`,
		userID, path.Board, path.Grade, path.Subject,
	)
	if err != nil {
		return nil, persistErr("topic stats", err)
	}
	defer rows.Close()

	stats := []TopicStat{}
	for rows.Next() {
		var st TopicStat
		if err := rows.Scan(&st.Topic, &st.Attempts, &st.Correct); err != nil {
			return nil, persistErr("topic stats", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("topic stats", err)
	}
	return stats, nil
}

func (s *PostgresStore) Classes(ctx context.Context, userID string) ([]curriculum.Class, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT board, grade FROM quiz_attempts
		 WHERE user_id = $1
		 ORDER BY board, grade`,
		userID,
	)
	if err != nil {
		return nil, persistErr("classes", err)
	}
	defer rows.Close()

	classes := []curriculum.Class{}
	for rows.Next() {
		var c curriculum.Class
		if err := rows.Scan(&c.Board, &c.Grade); err != nil {
			return nil, persistErr("classes", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("classes", err)
	}
	return classes, nil
}

func (s *PostgresStore) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT quiz_id, user_id, board, grade, subject, topic, question, user_answer, correct_answer, is_correct, created_at
		 FROM quiz_attempts
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistErr("recent", err)
	}
	defer rows.Close()

	recent := []Attempt{}
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.QuizID, &a.UserID, &a.Board, &a.Grade, &a.Subject, &a.Topic,
			&a.Question, &a.UserAnswer, &a.CorrectAnswer, &a.IsCorrect, &a.CreatedAt); err != nil {
			return nil, persistErr("recent", err)
		}
		recent = append(recent, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("recent", err)
	}
	return recent, nil
}
