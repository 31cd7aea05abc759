package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GoogleProvider implements Provider for Google Gemini.
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*genai.ClientConfig)

// WithGoogleBaseURL points the client at another endpoint (for testing).
func WithGoogleBaseURL(url string) GoogleOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = client
	}
}

// NewGoogleProvider creates a new Google Gemini provider.
func NewGoogleProvider(ctx context.Context, apiKey, model string, opts ...GoogleOption) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GoogleProvider{client: client, model: model}, nil
}

func (p *GoogleProvider) request(req CompletionRequest) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	system, rest := splitSystem(req.Messages)
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	contents := make([]*genai.Content, len(rest))
	for i, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return model, contents, config
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model, contents, config := p.request(req)

	result, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return CompletionResponse{}, wrapGoogleError(err)
	}

	content := result.Text()
	if content == "" {
		return CompletionResponse{}, fmt.Errorf("google: no candidates in response")
	}

	resp := CompletionResponse{
		Content: content,
		Model:   model,
	}
	if result.UsageMetadata != nil {
		resp.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		resp.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	return resp, nil
}

func (p *GoogleProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	model, contents, config := p.request(req)

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		done := StreamChunk{Done: true}
		for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				send(ctx, ch, StreamChunk{Error: wrapGoogleError(err)})
				return
			}
			// Usage metadata is cumulative; the last one wins.
			if u := result.UsageMetadata; u != nil {
				done.InputTokens = int(u.PromptTokenCount)
				done.OutputTokens = int(u.CandidatesTokenCount)
			}
			text := result.Text()
			if text == "" {
				continue
			}
			if !send(ctx, ch, StreamChunk{Content: text}) {
				return
			}
		}
		send(ctx, ch, done)
	}()
	return ch, nil
}

func (p *GoogleProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", MaxTokens: 1048576, Description: "Fast Google model"},
	}
}

func (p *GoogleProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, CompletionRequest{
		Messages:  []Message{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func wrapGoogleError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("google api error (status %d): %w", apiErr.Code, err)
	}
	return fmt.Errorf("google: %w", err)
}
