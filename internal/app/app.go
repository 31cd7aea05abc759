// Package app wires configuration into the running services shared by the
// server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/p-n-ai/taleem/internal/activity"
	"github.com/p-n-ai/taleem/internal/ai"
	"github.com/p-n-ai/taleem/internal/analytics"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/history"
	"github.com/p-n-ai/taleem/internal/httpapi"
	"github.com/p-n-ai/taleem/internal/learner"
	"github.com/p-n-ai/taleem/internal/platform/cache"
	"github.com/p-n-ai/taleem/internal/platform/config"
	"github.com/p-n-ai/taleem/internal/platform/database"
	"github.com/p-n-ai/taleem/internal/quiz"
	"github.com/p-n-ai/taleem/internal/session"
	"github.com/p-n-ai/taleem/internal/tutor"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	Catalog   *curriculum.Catalog
	History   history.Store
	Learners  learner.Registry
	Activity  activity.Logger
	Sessions  session.Store
	Analytics *analytics.Service
	AI        *ai.Router
	Checks    map[string]httpapi.Check

	closers []func()
}

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// Open loads the curriculum, connects storage and cache, and registers
// the configured AI providers. Callers must Close the result.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := curriculum.Load(cfg.CurriculumPath)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	a := &App{
		Config:  cfg,
		Catalog: catalog,
		Checks:  map[string]httpapi.Check{},
	}
	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var masteryCache analytics.Cache
	a.Sessions = session.NewMemoryStore()
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, using in-memory sessions", "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = c.Close() })
			a.Checks["cache"] = c.HealthCheck
			a.Sessions = session.NewCacheStore(c, cfg.Cache.SessionTTL)
			masteryCache = c
		}
	}

	a.Analytics = analytics.New(analytics.Config{
		Catalog:        catalog,
		Store:          a.History,
		Cache:          masteryCache,
		CacheTTL:       cfg.Cache.MasteryTTL,
		WeakTopicLimit: cfg.Quiz.WeakTopicLimit,
	})

	a.AI, err = NewRouter(ctx, cfg.AI)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config.Database
	switch cfg.Driver {
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.Checks["database"] = db.PingContext
		return a.useSQL(db)
	case "postgres":
		db, err := database.New(ctx, cfg.URL, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Checks["database"] = db.HealthCheck

		store, err := history.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		registry, err := learner.NewPostgresRegistry(db.Pool)
		if err != nil {
			return err
		}
		a.History = store
		a.Learners = registry
		a.Activity = activity.NewPostgresLogger(db.Pool)
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func (a *App) useSQL(db *sql.DB) error {
	store, err := history.NewSQLiteStore(db)
	if err != nil {
		return err
	}
	registry, err := learner.NewSQLiteRegistry(db)
	if err != nil {
		return err
	}
	a.History = store
	a.Learners = registry
	a.Activity = activity.NewSQLiteLogger(db)
	return nil
}

// NewRouter registers every configured AI provider in fallback order and
// applies the per-learner token budget.
func NewRouter(ctx context.Context, cfg config.AIConfig) (*ai.Router, error) {
	router := ai.NewRouter()

	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithDefaultModel(cfg.OpenAI.Model)))
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		router.Register("anthropic", p)
	}
	if cfg.Google.APIKey != "" {
		p, err := ai.NewGoogleProvider(ctx, cfg.Google.APIKey, cfg.Google.Model)
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		router.Register("google", p)
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model))
	}

	if !router.HasProvider() {
		slog.Warn("no AI provider configured; tutoring and quizzes will fail")
	}
	router.SetBudget(ai.NewInMemoryBudget(int64(cfg.TokenBudget)))
	slog.Info("AI providers registered", "providers", router.Providers())
	return router, nil
}

// Handler builds the HTTP API on top of the wired services.
func (a *App) Handler() *httpapi.Server {
	return httpapi.New(httpapi.Config{
		Catalog:   a.Catalog,
		Learners:  a.Learners,
		Sessions:  a.Sessions,
		History:   a.History,
		Analytics: a.Analytics,
		Tutor:     tutor.New(a.AI),
		Quizzes:   quiz.NewGenerator(quiz.GeneratorConfig{AI: a.AI, Questions: a.Config.Quiz.Questions}),
		Activity:  a.Activity,
		Checks:    a.Checks,
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ErrNoClass is returned when a learner has no quiz history to pick a class from.
var ErrNoClass = errors.New("learner has no recorded class")

// ResolveClass returns class when it is complete, else the learner's most
// recently studied class.
func (a *App) ResolveClass(ctx context.Context, userID string, class curriculum.Class) (curriculum.Class, error) {
	if class.Board != "" && class.Grade != "" {
		return class, nil
	}
	last, ok, err := history.MostRecentClass(ctx, a.History, userID)
	if err != nil {
		return curriculum.Class{}, err
	}
	if !ok {
		return curriculum.Class{}, ErrNoClass
	}
	return last, nil
}
