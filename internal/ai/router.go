package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrAllProvidersFailed is returned when no registered provider served the request.
	ErrAllProvidersFailed = errors.New("all AI providers failed")
	// ErrBudgetExceeded is returned when the learner has used up their token budget.
	ErrBudgetExceeded = errors.New("AI token budget exceeded")
)

// Router selects the best provider based on task type and availability.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	budget    BudgetChecker
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// SetBudget enables per-learner token budgeting for requests with a UserID.
func (r *Router) SetBudget(b BudgetChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = b
}

// Complete routes a request to the best available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkBudget(req); err != nil {
		return CompletionResponse{}, err
	}

	var lastErr error
	// Try each provider in fallback order.
	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			lastErr = err
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		r.recordUsage(req, resp.TotalTokens())
		return resp, nil
	}

	return CompletionResponse{}, failed(lastErr)
}

// StreamComplete opens a stream on the first provider that accepts the
// request. Failures after the stream has started arrive as chunk errors.
func (r *Router) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkBudget(req); err != nil {
		return nil, err
	}

	var lastErr error
	for _, name := range r.fallback {
		ch, err := r.providers[name].StreamComplete(ctx, req)
		if err != nil {
			slog.Warn("AI provider stream failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			lastErr = err
			continue
		}
		if r.budget == nil || req.UserID == "" {
			return ch, nil
		}
		return r.metered(ctx, req, ch), nil
	}

	return nil, failed(lastErr)
}

// metered relays a provider stream and charges its tokens to the learner
// once the stream ends, however it ends. Without reported usage the tokens
// are estimated from the text at about four characters per token.
func (r *Router) metered(ctx context.Context, req CompletionRequest, in <-chan StreamChunk) <-chan StreamChunk {
	budget := r.budget
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		var streamed, reported int
		defer func() {
			tokens := reported
			if tokens == 0 {
				tokens = estimateTokens(req.Messages, streamed)
			}
			recordUsage(budget, req.UserID, tokens)
		}()

		for c := range in {
			streamed += len(c.Content)
			reported += c.InputTokens + c.OutputTokens
			if !send(ctx, out, c) {
				go drain(in)
				return
			}
		}
	}()
	return out
}

func estimateTokens(msgs []Message, outputChars int) int {
	chars := outputChars
	for _, m := range msgs {
		chars += len(m.Content)
	}
	return (chars + 3) / 4
}

func drain(ch <-chan StreamChunk) {
	for range ch {
	}
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Providers returns the registered provider names in fallback order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallback...)
}

func (r *Router) checkBudget(req CompletionRequest) error {
	if r.budget == nil || req.UserID == "" {
		return nil
	}
	ok, err := r.budget.Check(req.UserID)
	if err != nil {
		return fmt.Errorf("checking AI budget: %w", err)
	}
	if !ok {
		return ErrBudgetExceeded
	}
	return nil
}

func (r *Router) recordUsage(req CompletionRequest, tokens int) {
	if r.budget == nil || req.UserID == "" {
		return
	}
	recordUsage(r.budget, req.UserID, tokens)
}

func recordUsage(b BudgetChecker, userID string, tokens int) {
	if err := b.Record(userID, tokens); err != nil {
		slog.Warn("failed to record AI usage", "user_id", userID, "error", err)
	}
}

func failed(last error) error {
	if last == nil {
		return ErrAllProvidersFailed
	}
	return fmt.Errorf("%w: %w", ErrAllProvidersFailed, last)
}
