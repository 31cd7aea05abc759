package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/taleem/internal/ai"
	"github.com/p-n-ai/taleem/internal/curriculum"
)

const (
	defaultQuestions = 10
	defaultAttempts  = 2
)

// Completer is the part of the AI router the generator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// GeneratorConfig holds dependencies for the quiz generator.
type GeneratorConfig struct {
	AI        Completer
	Questions int // default quiz length (default 10)
	Attempts  int // generations tried before giving up on malformed output (default 2)
}

// Generator asks the AI for a quiz and validates the result.
type Generator struct {
	ai        Completer
	questions int
	attempts  int
}

// NewGenerator creates a quiz generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	questions := cfg.Questions
	if questions <= 0 {
		questions = defaultQuestions
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	return &Generator{ai: cfg.AI, questions: questions, attempts: attempts}
}

// Generate returns up to n questions on topic; n <= 0 uses the default
// length. Malformed output is retried, and the last *InvalidQuestionsError
// is returned when every attempt fails validation.
func (g *Generator) Generate(ctx context.Context, userID string, path curriculum.SubjectPath, topic string, n int) ([]Question, error) {
	if n <= 0 {
		n = g.questions
	}

	req := ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "You are an experienced teacher who writes fair multiple-choice quizzes. Output JSON only."},
			{Role: ai.RoleUser, Content: quizPrompt(path, topic, n)},
		},
		Task:        ai.TaskQuiz,
		Temperature: 0.5,
		JSON:        true,
		UserID:      userID,
	}

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		resp, err := g.ai.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generating quiz: %w", err)
		}

		questions, err := ParseQuestions([]byte(resp.Content))
		if err == nil {
			if len(questions) > n {
				questions = questions[:n]
			}
			return questions, nil
		}

		var invalid *InvalidQuestionsError
		if !errors.As(err, &invalid) {
			return nil, err
		}
		slog.Warn("generated quiz failed validation",
			"topic", topic,
			"attempt", attempt,
			"violations", len(invalid.Violations),
		)
		lastErr = err
	}
	return nil, lastErr
}

func quizPrompt(path curriculum.SubjectPath, topic string, n int) string {
	return fmt.Sprintf(`The student is preparing %s (%s) for the %s.
Write a %d-question multiple-choice quiz on %q that checks the fundamentals expected at this level.
Return a JSON object with a "questions" array. Each item has the keys "question", "options" (four strings), "correct_answer" (copied exactly from options) and "explanation".`,
		path.Subject, path.Grade, path.Board, n, topic)
}
