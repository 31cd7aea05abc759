package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/p-n-ai/taleem/internal/curriculum"
)

// SQLiteStore keeps attempts in an embedded SQLite database opened with
// database.OpenSQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed attempt store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordBatch(ctx context.Context, attempts []Attempt) error {
	if len(attempts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("record batch", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range quizIDs(attempts) {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO quizzes (quiz_id, user_id, recorded_at_unix_ms) VALUES (?, ?, ?)`,
			id, attempts[0].UserID, now.UnixMilli(),
		)
		if err != nil {
			return persistErr("record batch", fmt.Errorf("claim quiz %s: %w", id, err))
		}
		if n, err := res.RowsAffected(); err != nil {
			return persistErr("record batch", err)
		} else if n == 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateQuiz, id)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quiz_attempts
		 (quiz_id, user_id, board, grade, subject, topic, question, user_answer, correct_answer, is_correct, created_at_unix_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return persistErr("record batch", err)
	}
	defer stmt.Close()

	for i, a := range attempts {
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			a.QuizID, a.UserID, a.Board, a.Grade, a.Subject, a.Topic,
			a.Question, a.UserAnswer, a.CorrectAnswer, boolToInt(a.IsCorrect), createdAt.UnixMilli(),
		); err != nil {
			return persistErr("record batch", fmt.Errorf("insert attempt %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("record batch", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *SQLiteStore) TopicStats(ctx context.Context, userID string, path curriculum.SubjectPath) ([]TopicStat, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, COUNT(*), SUM(is_correct)
		 FROM quiz_attempts
		 WHERE user_id = ? AND board = ? AND grade = ? AND subject = ?
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

func (s *SQLiteStore) Classes(ctx context.Context, userID string) ([]curriculum.Class, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT board, grade FROM quiz_attempts
		 WHERE user_id = ?
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

func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT quiz_id, user_id, board, grade, subject, topic, question, user_answer, correct_answer, is_correct, created_at_unix_ms
		 FROM quiz_attempts
		 WHERE user_id = ?
		 ORDER BY created_at_unix_ms DESC, id DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, persistErr("recent", err)
	}
	defer rows.Close()

	recent := []Attempt{}
	for rows.Next() {
		var (
			a         Attempt
			isCorrect int
			createdMS int64
		)
		if err := rows.Scan(&a.QuizID, &a.UserID, &a.Board, &a.Grade, &a.Subject, &a.Topic,
			&a.Question, &a.UserAnswer, &a.CorrectAnswer, &isCorrect, &createdMS); err != nil {
			return nil, persistErr("recent", err)
		}
		a.IsCorrect = isCorrect == 1
		a.CreatedAt = time.UnixMilli(createdMS).UTC()
		recent = append(recent, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("recent", err)
	}
	return recent, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
