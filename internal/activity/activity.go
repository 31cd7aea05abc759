// Package activity records what learners do (logins, explanations, quizzes)
// as an append-only event stream for later analysis.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const dbTimeout = 5 * time.Second

// Event types.
const (
	TypeLogin            = "login"
	TypeExplanation      = "explanation_requested"
	TypeExample          = "example_requested"
	TypeFollowUp         = "follow_up_asked"
	TypeQuizStarted      = "quiz_started"
	TypeQuizCompleted    = "quiz_completed"
	TypeResultsNotSaved  = "results_not_saved"
	TypeProgressExported = "progress_exported"
)

var (
	errNoType = errors.New("event type is required")
	errNoUser = errors.New("event user id is required")
)

// Event is one learner action.
type Event struct {
	SessionID string
	UserID    string
	Type      string
	Data      map[string]any
	CreatedAt time.Time
}

// Logger persists events.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopLogger drops all events.
type NopLogger struct{}

func (NopLogger) LogEvent(context.Context, Event) error {
	return nil
}

// MemoryLogger keeps events in memory for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{events: []Event{}}
}

func (l *MemoryLogger) LogEvent(_ context.Context, event Event) error {
	if err := check(event); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Events returns a copy of everything logged so far.
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Types returns the type of every logged event, in order.
func (l *MemoryLogger) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]string, len(l.events))
	for i, e := range l.events {
		types[i] = e.Type
	}
	return types
}

// Log records event and only logs a warning on failure. Activity tracking
// never fails the request it describes.
func Log(ctx context.Context, l Logger, event Event) {
	if l == nil {
		return
	}
	if err := l.LogEvent(ctx, event); err != nil {
		slog.Warn("activity event not recorded", "type", event.Type, "user_id", event.UserID, "error", err)
	}
}

func check(event Event) error {
	if event.Type == "" {
		return errNoType
	}
	if event.UserID == "" {
		return errNoUser
	}
	return nil
}

func encode(event Event) (string, time.Time, error) {
	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return string(data), createdAt.UTC(), nil
}
