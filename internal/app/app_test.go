package app_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/p-n-ai/taleem/internal/app"
	"github.com/p-n-ai/taleem/internal/curriculum"
	"github.com/p-n-ai/taleem/internal/platform/config"
)

const curriculumYAML = `
Punjab Board:
  Class 9:
    Physics:
      Kinematics: [Motion, Speed]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "punjab.yaml"), []byte(curriculumYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dir, "taleem.db"),
		},
		Quiz:           config.QuizConfig{Questions: 5, WeakTopicLimit: 3},
		Log:            config.LogConfig{Level: "info", Format: "json"},
		CurriculumPath: dir,
	}
}

func TestOpen_SQLite(t *testing.T) {
	a, err := app.Open(t.Context(), testConfig(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if got := a.Catalog.CountTopics("Punjab Board", "Class 9", "Physics"); got != 2 {
		t.Errorf("CountTopics() = %d, want 2", got)
	}
	if _, ok := a.Checks["database"]; !ok {
		t.Error("database readiness check missing")
	}
	if _, ok := a.Checks["cache"]; ok {
		t.Error("cache check registered with the cache disabled")
	}

	mux := a.Handler().Routes()
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, body %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"
	if _, err := app.Open(t.Context(), cfg); err == nil {
		t.Fatal("Open() should reject an unknown driver")
	}
}

func TestOpen_CacheDownFallsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable cache test in short mode")
	}
	cfg := testConfig(t)
	cfg.Cache = config.CacheConfig{Enabled: true, URL: "redis://localhost:59999"}

	a, err := app.Open(t.Context(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()
	if _, ok := a.Checks["cache"]; ok {
		t.Error("unreachable cache should not be registered")
	}
}

func TestNewRouter(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
		want []string
	}{
		{"none", config.AIConfig{}, []string{}},
		{"openai and ollama", config.AIConfig{
			OpenAI: config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
			Ollama: config.OllamaConfig{Enabled: true, URL: "http://localhost:11434", Model: "llama3:8b"},
		}, []string{"openai", "ollama"}},
		{"all", config.AIConfig{
			OpenAI:     config.OpenAIConfig{APIKey: "sk-test"},
			Anthropic:  config.AnthropicConfig{APIKey: "sk-ant", Model: "claude-sonnet-4-6"},
			Google:     config.GoogleConfig{APIKey: "g-key", Model: "gemini-2.0-flash"},
			DeepSeek:   config.DeepSeekConfig{APIKey: "ds-key"},
			OpenRouter: config.OpenRouterConfig{APIKey: "or-key", Model: "openai/gpt-4o-mini"},
		}, []string{"openai", "anthropic", "google", "deepseek", "openrouter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := app.NewRouter(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("NewRouter() error = %v", err)
			}
			if got := router.Providers(); !slices.Equal(got, tt.want) {
				t.Errorf("Providers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		logger := app.NewLogger(config.LogConfig{Level: tt.level, Format: "text"})
		ctx := context.Background()
		if !logger.Enabled(ctx, tt.want) {
			t.Errorf("level %q: %v should be enabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(ctx, tt.want-1) {
			t.Errorf("level %q: below %v should be disabled", tt.level, tt.want)
		}
	}
}

func TestResolveClass(t *testing.T) {
	a, err := app.Open(t.Context(), testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	given := curriculum.Class{Board: "Punjab Board", Grade: "Class 9"}
	if got, err := a.ResolveClass(t.Context(), "ayesha", given); err != nil || got != given {
		t.Errorf("ResolveClass(given) = %v, %v", got, err)
	}
	if _, err := a.ResolveClass(t.Context(), "ayesha", curriculum.Class{}); err != app.ErrNoClass {
		t.Errorf("ResolveClass(empty) error = %v, want ErrNoClass", err)
	}
}
