// Package httpapi exposes the study app over HTTP: login, curriculum
// browsing, the study wizard, AI tutoring, quizzes and progress reports.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/taleem/internal/activity"
	"github.com/p-n-ai/taleem/internal/ai"
	"github.com/p-n-ai/taleem/internal/analytics"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/learner"
	"github.com/p-n-ai/taleem/internal/quiz"
	"github.com/p-n-ai/taleem/internal/session"
	"github.com/p-n-ai/taleem/internal/tutor"
)

const (
	sessionHeader = "X-Session-ID"
	sessionParam  = "session"
	maxBodyBytes  = 1 << 20
	checkTimeout  = 2 * time.Second
)

var errBadRequest = errors.New("bad request")

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Config holds the dependencies of a Server.
type Config struct {
	Catalog   *curriculum.Catalog
	Learners  learner.Registry
	Sessions  session.Store
	History   history.Store
	Analytics *analytics.Service
	Tutor     *tutor.Tutor
	Quizzes   *quiz.Generator
	Activity  activity.Logger  // optional
	Checks    map[string]Check // run by /readyz
}

// Server serves the HTTP API.
type Server struct {
	catalog   *curriculum.Catalog
	learners  learner.Registry
	sessions  session.Store
	history   history.Store
	analytics *analytics.Service
	tutor     *tutor.Tutor
	quizzes   *quiz.Generator
	activity  activity.Logger
	checks    map[string]Check
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Activity == nil {
		cfg.Activity = activity.NopLogger{}
	}
	return &Server{
		catalog:   cfg.Catalog,
		learners:  cfg.Learners,
		sessions:  cfg.Sessions,
		history:   cfg.History,
		analytics: cfg.Analytics,
		tutor:     cfg.Tutor,
		quizzes:   cfg.Quizzes,
		activity:  cfg.Activity,
		checks:    cfg.Checks,
	}
}

// Routes returns the HTTP router.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /v1/sessions", s.handleLogin)
	mux.HandleFunc("DELETE /v1/sessions", s.handleLogout)
	mux.HandleFunc("GET /v1/sessions/current", s.handleCurrentSession)

	mux.HandleFunc("GET /v1/curriculum/boards", s.handleBoards)
	mux.HandleFunc("GET /v1/curriculum/grades", s.handleGrades)
	mux.HandleFunc("GET /v1/curriculum/subjects", s.handleSubjects)
	mux.HandleFunc("GET /v1/curriculum/chapters", s.handleChapters)
	mux.HandleFunc("GET /v1/curriculum/topics", s.handleTopics)

	mux.HandleFunc("POST /v1/session/class", s.handleBeginClassPrep)
	mux.HandleFunc("POST /v1/session/subject", s.handleChooseSubject)
	mux.HandleFunc("POST /v1/session/chapter", s.handleChooseChapter)
	mux.HandleFunc("POST /v1/session/topic", s.handleChooseTopic)
	mux.HandleFunc("POST /v1/session/study", s.handleStudyTopic)
	mux.HandleFunc("POST /v1/session/back", s.handleBack)
	mux.HandleFunc("POST /v1/session/finish", s.handleFinish)

	mux.HandleFunc("POST /v1/explanations", s.handleExplain)
	mux.HandleFunc("GET /v1/explanations/stream", s.handleExplainStream)
	mux.HandleFunc("POST /v1/examples", s.handleExample)
	mux.HandleFunc("POST /v1/follow-ups", s.handleFollowUp)

	mux.HandleFunc("POST /v1/quiz", s.handleStartQuiz)
	mux.HandleFunc("POST /v1/quiz/answers", s.handleAnswers)
	mux.HandleFunc("POST /v1/quiz/retake", s.handleRetake)

	mux.HandleFunc("GET /v1/progress", s.handleProgress)
	mux.HandleFunc("GET /v1/progress/export", s.handleExport)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		slog.Warn("readiness check failed", "failures", failures)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// currentSession loads the session named by the X-Session-ID header or,
// for websocket clients that cannot set headers, the session query parameter.
func (s *Server) currentSession(r *http.Request) (*session.Session, error) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		id = r.URL.Query().Get(sessionParam)
	}
	if id == "" {
		return nil, session.ErrNotFound
	}
	return s.sessions.Get(r.Context(), id)
}

// mutate loads the current session, applies fn and saves the result. A
// failing fn leaves the stored session untouched, so fn may transition
// first and validate after.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*session.Session) error) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := fn(sess); err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) record(r *http.Request, sess *session.Session, typ string, data map[string]any) {
	activity.Log(r.Context(), s.activity, activity.Event{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Type:      typ,
		Data:      data,
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func fmtTransition(op string, step session.Step) error {
	return fmt.Errorf("%w: %s from %s", session.ErrInvalidTransition, op, step)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var invalidQuiz *quiz.InvalidQuestionsError
	switch {
	case history.IsPersistence(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ai.ErrBudgetExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ai.ErrAllProvidersFailed), errors.As(err, &invalidQuiz):
		return http.StatusBadGateway
	case errors.Is(err, errBadRequest),
		errors.Is(err, learner.ErrEmptyUsername),
		errors.Is(err, analytics.ErrInvalidCompletion),
		errors.Is(err, quiz.ErrAnswerCountMismatch),
		errors.Is(err, tutor.ErrEmptyQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "progress unavailable, please try again later"
	case http.StatusUnauthorized:
		msg = "no active session, please log in"
	case http.StatusInternalServerError:
		msg = "internal error"
	}
	if status >= 500 {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
