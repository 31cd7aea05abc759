package ai

import (
	"context"
	"strings"
	"sync"
)

// MockProvider is a test double for AI providers.
type MockProvider struct {
	Response string
	// Responses, when set, are returned in order; the last one repeats.
	Responses []string
	Err       error
	// Chunks overrides how StreamComplete splits the response.
	Chunks []string

	mu          sync.Mutex
	calls       int
	LastRequest *CompletionRequest // captures the last request for inspection
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

// Calls returns how many completions were requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) next(req CompletionRequest) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRequest = &req
	m.calls++
	if len(m.Responses) == 0 {
		return m.Response
	}
	i := min(m.calls-1, len(m.Responses)-1)
	return m.Responses[i]
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	content := m.next(req)
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

func (m *MockProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	content := m.next(req)
	if m.Err != nil {
		return nil, m.Err
	}
	chunks := m.Chunks
	if chunks == nil {
		chunks = strings.SplitAfter(content, " ")
	}

	ch := make(chan StreamChunk, len(chunks)+1)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if !send(ctx, ch, StreamChunk{Content: c}) {
				return
			}
		}
		send(ctx, ch, StreamChunk{Done: true, InputTokens: 10, OutputTokens: len(content)})
	}()
	return ch, nil
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// Collect drains a stream into one string, returning the first chunk error.
func Collect(ch <-chan StreamChunk) (string, error) {
	var b strings.Builder
	for c := range ch {
		if c.Error != nil {
			return b.String(), c.Error
		}
		b.WriteString(c.Content)
	}
	return b.String(), nil
}
