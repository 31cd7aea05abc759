// Package learner keeps the registry of students. Authentication is a
// username-presence check: logging in with an unseen name registers it.
package learner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

const dbTimeout = 5 * time.Second

// ErrEmptyUsername is returned when a username is blank after trimming.
var ErrEmptyUsername = errors.New("username is required")

// Learner is a registered student.
type Learner struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Registry resolves usernames to learners, creating them on first login.
// created reports whether the learner did not exist before this call.
type Registry interface {
	Login(ctx context.Context, username string) (l Learner, created bool, err error)
}

// NormalizeUsername trims s and case-folds it so "Ayesha", "AYESHA " and
// "ayesha" name the same learner.
func NormalizeUsername(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyUsername
	}
	return cases.Fold().String(s), nil
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu       sync.Mutex
	learners map[string]Learner
	now      func() time.Time
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		learners: make(map[string]Learner),
		now:      time.Now,
	}
}

func (r *MemoryRegistry) Login(_ context.Context, username string) (Learner, bool, error) {
	id, err := NormalizeUsername(username)
	if err != nil {
		return Learner{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.learners[id]; ok {
		return l, false, nil
	}
	l := Learner{
		ID:          id,
		DisplayName: strings.TrimSpace(username),
		CreatedAt:   r.now().UTC(),
	}
	r.learners[id] = l
	return l, true, nil
}
