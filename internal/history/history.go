// Package history is the append-only log of answered quiz questions.
//
// Every quiz completion lands as one batch that either commits whole or not
// at all. Rows are never updated or deleted; IsCorrect is stored as graded
// at write time.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/taleem/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// Attempt is one answered question.
type Attempt struct {
	QuizID        string    `json:"quiz_id"`
	UserID        string    `json:"user_id"`
	Board         string    `json:"board"`
	Grade         string    `json:"grade"`
	Subject       string    `json:"subject"`
	Topic         string    `json:"topic"`
	Question      string    `json:"question"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	CreatedAt     time.Time `json:"created_at"`
}

// Class returns the board and grade the attempt was made under.
func (a Attempt) Class() curriculum.Class {
	return curriculum.Class{Board: a.Board, Grade: a.Grade}
}

// TopicStat aggregates a user's attempts on one topic.
type TopicStat struct {
	Topic    string `json:"topic"`
	Attempts int    `json:"attempts"`
	Correct  int    `json:"correct"`
}

// Incorrect returns the number of wrong answers on the topic.
func (s TopicStat) Incorrect() int {
	return s.Attempts - s.Correct
}

// Accuracy returns the fraction of correct answers, 0 when there are none.
func (s TopicStat) Accuracy() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Attempts)
}

// ErrDuplicateQuiz is returned by RecordBatch when a quiz id in the batch
// has already been recorded. Nothing from the batch is written.
var ErrDuplicateQuiz = errors.New("quiz already recorded")

// Store persists and aggregates attempts.
type Store interface {
	// RecordBatch appends all attempts atomically. An empty batch is a no-op.
	// Each non-empty quiz id may be recorded by one batch only.
	RecordBatch(ctx context.Context, attempts []Attempt) error
	// TopicStats groups the user's attempts under path by topic, ordered by topic name.
	TopicStats(ctx context.Context, userID string, path curriculum.SubjectPath) ([]TopicStat, error)
	// Classes lists the distinct board/grade pairs the user has attempted.
	Classes(ctx context.Context, userID string) ([]curriculum.Class, error)
	// Recent returns up to limit attempts, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]Attempt, error)
}

// PersistenceError reports that the attempt store could not be read or written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err is, or wraps, a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// MostRecentClass returns the class of the user's latest attempt. ok is
// false when the user has no attempts.
func MostRecentClass(ctx context.Context, s Store, userID string) (class curriculum.Class, ok bool, err error) {
	recent, err := s.Recent(ctx, userID, 1)
	if err != nil {
		return curriculum.Class{}, false, err
	}
	if len(recent) == 0 {
		return curriculum.Class{}, false, nil
	}
	return recent[0].Class(), true, nil
}

// quizIDs returns the distinct non-empty quiz ids of a batch in order.
func quizIDs(attempts []Attempt) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, a := range attempts {
		if a.QuizID == "" || seen[a.QuizID] {
			continue
		}
		seen[a.QuizID] = true
		ids = append(ids, a.QuizID)
	}
	return ids
}

func validate(i int, a Attempt) error {
	switch {
	case a.UserID == "":
		return fmt.Errorf("attempt %d: user id is empty", i)
	case a.Board == "", a.Grade == "", a.Subject == "":
		return fmt.Errorf("attempt %d: curriculum path is incomplete", i)
	case a.Topic == "":
		return fmt.Errorf("attempt %d: topic is empty", i)
	}
	return nil
}
