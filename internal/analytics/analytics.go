// Package analytics turns the attempt log into progress signals: subject
// mastery against the full curriculum, weakest topics, and progress reports.
package analytics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/quiz"
)

// A topic is mastered when at least 70% of all its recorded answers are
// correct. Compared in integers so exactly 70% counts.
const (
	masteryNumerator   = 7
	masteryDenominator = 10
)

// DefaultWeakTopicLimit is used when a caller passes a non-positive limit.
const DefaultWeakTopicLimit = 3

// ErrInvalidCompletion is returned for quiz completions that cannot be recorded.
var ErrInvalidCompletion = errors.New("invalid quiz completion")

// Catalog is the read side of the curriculum analytics needs.
type Catalog interface {
	Subjects(board, grade string) []string
	CountTopics(board, grade, subject string) int
}

// Cache stores computed mastery between writes. Incr bumps a counter
// stored as a plain integer, readable with GetJSON.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Config holds the dependencies of a Service.
type Config struct {
	Catalog        Catalog
	Store          history.Store
	Cache          Cache         // optional
	CacheTTL       time.Duration // default 5m
	WeakTopicLimit int           // default 3
	Now            func() time.Time
}

// Service computes learner progress.
type Service struct {
	catalog   Catalog
	store     history.Store
	cache     Cache
	ttl       time.Duration
	weakLimit int
	now       func() time.Time
}

// New creates a Service, applying defaults.
func New(cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.WeakTopicLimit <= 0 {
		cfg.WeakTopicLimit = DefaultWeakTopicLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		cache:     cfg.Cache,
		ttl:       cfg.CacheTTL,
		weakLimit: cfg.WeakTopicLimit,
		now:       cfg.Now,
	}
}

// SubjectMastery is the share of a subject's curriculum topics a learner
// has mastered, as a percentage.
type SubjectMastery struct {
	Subject string  `json:"subject"`
	Percent float64 `json:"percent"`
}

// Mastery lists subject mastery in curriculum order.
type Mastery []SubjectMastery

// Percent returns the mastery of subject.
func (m Mastery) Percent(subject string) (float64, bool) {
	for _, sm := range m {
		if sm.Subject == subject {
			return sm.Percent, true
		}
	}
	return 0, false
}

// Map returns mastery keyed by subject.
func (m Mastery) Map() map[string]float64 {
	out := make(map[string]float64, len(m))
	for _, sm := range m {
		out[sm.Subject] = sm.Percent
	}
	return out
}

func mastered(s history.TopicStat) bool {
	return s.Attempts > 0 && s.Correct*masteryDenominator >= s.Attempts*masteryNumerator
}

// Cached mastery is keyed by the learner's write generation, which every
// recorded quiz bumps. A fill computed before a write lands under the old
// generation and is never read again.
func generationKey(userID string) string {
	return "mastery-gen:" + url.QueryEscape(userID)
}

func masteryKey(userID string, class curriculum.Class, gen int64) string {
	return strings.Join([]string{
		"mastery",
		url.QueryEscape(userID),
		url.QueryEscape(class.Board),
		url.QueryEscape(class.Grade),
		strconv.FormatInt(gen, 10),
	}, ":")
}

// cacheKey returns the key for the learner's current generation, or false
// when there is no usable cache.
func (s *Service) cacheKey(ctx context.Context, userID string, class curriculum.Class) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var gen int64
	if _, err := s.cache.GetJSON(ctx, generationKey(userID), &gen); err != nil {
		slog.Warn("mastery cache read failed", "user_id", userID, "error", err)
		return "", false
	}
	return masteryKey(userID, class, gen), true
}

// ComputeSubjectMastery reports, for every subject of the class, the number
// of mastered topics over the subject's total curriculum topic count. A
// subject with no curriculum topics is 0. The result is not clamped: topics
// attempted but since removed from the curriculum still count as mastered.
func (s *Service) ComputeSubjectMastery(ctx context.Context, userID string, class curriculum.Class) (Mastery, error) {
	key, useCache := s.cacheKey(ctx, userID, class)
	if useCache {
		var cached Mastery
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("mastery cache read failed", "user_id", userID, "error", err)
		} else if found {
			return cached, nil
		}
	}

	subjects := s.catalog.Subjects(class.Board, class.Grade)
	result := make(Mastery, 0, len(subjects))
	for _, subject := range subjects {
		total := s.catalog.CountTopics(class.Board, class.Grade, subject)
		if total == 0 {
			result = append(result, SubjectMastery{Subject: subject})
			continue
		}

		path := curriculum.SubjectPath{Board: class.Board, Grade: class.Grade, Subject: subject}
		stats, err := s.store.TopicStats(ctx, userID, path)
		if err != nil {
			return nil, fmt.Errorf("mastery for %s: %w", subject, err)
		}
		n := 0
		for _, st := range stats {
			if mastered(st) {
				n++
			}
		}
		result = append(result, SubjectMastery{
			Subject: subject,
			Percent: float64(n) * 100 / float64(total),
		})
	}

	if useCache {
		if err := s.cache.SetJSON(ctx, key, result, s.ttl); err != nil {
			slog.Warn("mastery cache write failed", "user_id", userID, "error", err)
		}
	}
	return result, nil
}

// WeakestTopics returns up to limit topics of the subject ordered by how
// many wrong answers the learner has given, most first, ties by name.
// Topics never answered wrongly are not weak. A non-positive limit uses
// the configured default.
func (s *Service) WeakestTopics(ctx context.Context, userID string, path curriculum.SubjectPath, limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.weakLimit
	}

	stats, err := s.store.TopicStats(ctx, userID, path)
	if err != nil {
		return nil, fmt.Errorf("weak topics for %s: %w", path.Subject, err)
	}

	weak := slices.DeleteFunc(stats, func(st history.TopicStat) bool {
		return st.Incorrect() == 0
	})
	slices.SortFunc(weak, func(a, b history.TopicStat) int {
		if c := cmp.Compare(b.Incorrect(), a.Incorrect()); c != 0 {
			return c
		}
		return strings.Compare(a.Topic, b.Topic)
	})

	topics := make([]string, 0, min(limit, len(weak)))
	for _, st := range weak[:min(limit, len(weak))] {
		topics = append(topics, st.Topic)
	}
	return topics, nil
}

// RecordQuizCompletion grades each answer against its question and
// appends the whole quiz to the attempt log as one batch. It returns the
// quiz ID shared by the batch. A store failure surfaces as a
// *history.PersistenceError and nothing is recorded.
func (s *Service) RecordQuizCompletion(ctx context.Context, userID string, path curriculum.SubjectPath, topic string, questions []quiz.Question, answers []string) (string, error) {
	return s.RecordQuizCompletionWithID(ctx, uuid.NewString(), userID, path, topic, questions, answers)
}

// RecordQuizCompletionWithID is RecordQuizCompletion under a caller-chosen
// quiz ID. Recording the same ID twice fails with history.ErrDuplicateQuiz
// and leaves the first recording in place.
func (s *Service) RecordQuizCompletionWithID(ctx context.Context, quizID, userID string, path curriculum.SubjectPath, topic string, questions []quiz.Question, answers []string) (string, error) {
	switch {
	case quizID == "":
		return "", fmt.Errorf("%w: quiz id is empty", ErrInvalidCompletion)
	case len(answers) != len(questions):
		return "", fmt.Errorf("%w: %w", ErrInvalidCompletion, quiz.ErrAnswerCountMismatch)
	case userID == "":
		return "", fmt.Errorf("%w: user id is empty", ErrInvalidCompletion)
	case path.Board == "" || path.Grade == "" || path.Subject == "":
		return "", fmt.Errorf("%w: curriculum path is incomplete", ErrInvalidCompletion)
	case topic == "":
		return "", fmt.Errorf("%w: topic is empty", ErrInvalidCompletion)
	}
	for i, q := range questions {
		if q.CorrectAnswer == "" {
			return "", fmt.Errorf("%w: question %d has no correct answer", ErrInvalidCompletion, i+1)
		}
	}
	if len(questions) == 0 {
		return "", nil
	}

	now := s.now()
	attempts := make([]history.Attempt, len(questions))
	correct := 0
	for i, q := range questions {
		isCorrect := answers[i] == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		attempts[i] = history.Attempt{
			QuizID:        quizID,
			UserID:        userID,
			Board:         path.Board,
			Grade:         path.Grade,
			Subject:       path.Subject,
			Topic:         topic,
			Question:      q.Text,
			UserAnswer:    answers[i],
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     isCorrect,
			CreatedAt:     now,
		}
	}

	if err := s.store.RecordBatch(ctx, attempts); err != nil {
		if errors.Is(err, history.ErrDuplicateQuiz) {
			return quizID, err
		}
		return "", err
	}

	slog.Info("quiz results recorded",
		"user_id", userID,
		"quiz_id", quizID,
		"subject", path.Subject,
		"topic", topic,
		"correct", correct,
		"total", len(attempts),
	)

	if s.cache != nil {
		if _, err := s.cache.Incr(ctx, generationKey(userID)); err != nil {
			slog.Warn("mastery cache invalidation failed", "user_id", userID, "error", err)
		}
	}
	return quizID, nil
}
