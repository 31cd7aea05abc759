package history

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/taleem/internal/curriculum"
)

// MemoryStore keeps attempts in process memory. Setting Err makes every
// call fail with a PersistenceError wrapping it.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts []Attempt
	quizzes  map[string]bool

	Err error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{quizzes: make(map[string]bool)}
}

// Len returns the number of stored attempts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

func (s *MemoryStore) RecordBatch(_ context.Context, attempts []Attempt) error {
	if len(attempts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return persistErr("record batch", s.Err)
	}
	for i, a := range attempts {
		if err := validate(i, a); err != nil {
			return persistErr("record batch", err)
		}
	}
	ids := quizIDs(attempts)
	for _, id := range ids {
		if s.quizzes[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateQuiz, id)
		}
	}
	if s.quizzes == nil {
		s.quizzes = make(map[string]bool)
	}
	for _, id := range ids {
		s.quizzes[id] = true
	}

	now := time.Now().UTC()
	for _, a := range attempts {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		s.attempts = append(s.attempts, a)
	}
	return nil
}

func (s *MemoryStore) TopicStats(_ context.Context, userID string, path curriculum.SubjectPath) ([]TopicStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, persistErr("topic stats", s.Err)
	}

	byTopic := make(map[string]*TopicStat)
	for _, a := range s.attempts {
		if a.UserID != userID || a.Board != path.Board || a.Grade != path.Grade || a.Subject != path.Subject {
			continue
		}
		st, ok := byTopic[a.Topic]
		if !ok {
			st = &TopicStat{Topic: a.Topic}
			byTopic[a.Topic] = st
		}
		st.Attempts++
		if a.IsCorrect {
			st.Correct++
		}
	}

	stats := make([]TopicStat, 0, len(byTopic))
	for _, st := range byTopic {
		stats = append(stats, *st)
	}
	slices.SortFunc(stats, func(a, b TopicStat) int {
		return strings.Compare(a.Topic, b.Topic)
	})
	return stats, nil
}

func (s *MemoryStore) Classes(_ context.Context, userID string) ([]curriculum.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, persistErr("classes", s.Err)
	}

	seen := make(map[curriculum.Class]bool)
	classes := []curriculum.Class{}
	for _, a := range s.attempts {
		if a.UserID != userID || seen[a.Class()] {
			continue
		}
		seen[a.Class()] = true
		classes = append(classes, a.Class())
	}
	slices.SortFunc(classes, compareClass)
	return classes, nil
}

func (s *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, persistErr("recent", s.Err)
	}

	recent := []Attempt{}
	// Newest rows are at the tail; walking backwards keeps insertion order
	// as the tie-break for equal timestamps.
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if s.attempts[i].UserID == userID {
			recent = append(recent, s.attempts[i])
		}
	}
	slices.SortStableFunc(recent, func(a, b Attempt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func compareClass(a, b curriculum.Class) int {
	if c := strings.Compare(a.Board, b.Board); c != 0 {
		return c
	}
	return strings.Compare(a.Grade, b.Grade)
}
