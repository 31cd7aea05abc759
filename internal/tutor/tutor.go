// Package tutor turns a curriculum topic into explanations, examples and
// answers to follow-up questions.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/taleem/internal/ai"
	"github.com/p-n-ai/taleem/internal/curriculum"
)

// ErrEmptyQuestion is returned for a blank follow-up question.
var ErrEmptyQuestion = errors.New("follow-up question is empty")

// Depth selects how thorough an explanation is.
type Depth string

const (
	DepthSummary  Depth = "summary"
	DepthDetailed Depth = "detailed"
	DepthDeep     Depth = "deep"
)

// ParseDepth validates a depth name. An empty string selects the summary.
func ParseDepth(s string) (Depth, error) {
	switch d := Depth(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DepthSummary, nil
	case DepthSummary, DepthDetailed, DepthDeep:
		return d, nil
	default:
		return "", fmt.Errorf("unknown explanation depth %q", s)
	}
}

// Request identifies what to teach and how.
type Request struct {
	UserID   string
	Path     curriculum.SubjectPath
	Topic    string
	Depth    Depth
	Language Language
}

// AI is the part of the AI router the tutor needs.
type AI interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
	StreamComplete(ctx context.Context, req ai.CompletionRequest) (<-chan ai.StreamChunk, error)
}

// Tutor produces teaching content through an AI provider.
type Tutor struct {
	ai AI
}

// New creates a tutor.
func New(client AI) *Tutor {
	return &Tutor{ai: client}
}

// Explain returns a Markdown explanation of the topic at the requested depth.
func (t *Tutor) Explain(ctx context.Context, req Request) (string, error) {
	resp, err := t.ai.Complete(ctx, explainRequest(req))
	if err != nil {
		return "", fmt.Errorf("explaining %q: %w", req.Topic, err)
	}
	return resp.Content, nil
}

// StreamExplain is Explain delivered incrementally.
func (t *Tutor) StreamExplain(ctx context.Context, req Request) (<-chan ai.StreamChunk, error) {
	ch, err := t.ai.StreamComplete(ctx, explainRequest(req))
	if err != nil {
		return nil, fmt.Errorf("explaining %q: %w", req.Topic, err)
	}
	return ch, nil
}

// Example returns one real-world example or analogy for the topic.
func (t *Tutor) Example(ctx context.Context, req Request) (string, error) {
	prompt := fmt.Sprintf(`Give one memorable real-world example or analogy for %q that a %s student in Pakistan can relate to.
Start directly with the example. %s`,
		req.Topic, req.Path.Grade, req.Language.instruction(DepthSummary))

	resp, err := t.ai.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: prompt}},
		Task:        ai.TaskExample,
		Temperature: 0.7,
		UserID:      req.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("example for %q: %w", req.Topic, err)
	}
	return resp.Content, nil
}

// FollowUp answers a learner's question about an explanation they were shown.
func (t *Tutor) FollowUp(ctx context.Context, req Request, explanation, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: fmt.Sprintf(
			"You are a tutor helping a %s student of the %s with %q. Answer the student's question directly. %s",
			req.Path.Grade, req.Path.Board, req.Topic, req.Language.instruction(DepthSummary))},
	}
	if explanation != "" {
		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: explanation})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: question})

	resp, err := t.ai.Complete(ctx, ai.CompletionRequest{
		Messages:    messages,
		Task:        ai.TaskFollowUp,
		Temperature: 0.5,
		UserID:      req.UserID,
	})
	if err != nil {
		return "", fmt.Errorf("answering follow-up on %q: %w", req.Topic, err)
	}
	return resp.Content, nil
}

var sections = map[Depth]string{
	DepthSummary:  "### 1. Simple Definition\n### 2. Core Concepts\n### 3. Key Takeaway or Formula",
	DepthDetailed: "### 1. In-Depth Analysis\n### 2. Step-by-Step Process or Key Components\n### 3. Common Misconceptions",
	DepthDeep:     "### 1. Abstract\n### 2. Historical Context and Foundations\n### 3. Theoretical Framework\n### 4. Advanced Applications",
}

var roles = map[Depth]string{
	DepthSummary:  "a teacher making a topic easy to grasp",
	DepthDetailed: "a professor preparing a study guide",
	DepthDeep:     "a researcher writing a definitive guide",
}

func explainRequest(req Request) ai.CompletionRequest {
	depth := req.Depth
	if _, ok := sections[depth]; !ok {
		depth = DepthSummary
	}
	maxTokens := 1024
	if depth == DepthDeep {
		maxTokens = 4096
	}

	prompt := fmt.Sprintf(`You are %s for a student preparing %s (%s, %s).
Explain the topic %q at a level that suits this student. %s
Use exactly these Markdown sections:
%s`,
		roles[depth], req.Path.Subject, req.Path.Grade, req.Path.Board,
		req.Topic, req.Language.instruction(depth), sections[depth])

	return ai.CompletionRequest{
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: prompt}},
		Task:        ai.TaskExplain,
		MaxTokens:   maxTokens,
		Temperature: 0.6,
		UserID:      req.UserID,
	}
}
