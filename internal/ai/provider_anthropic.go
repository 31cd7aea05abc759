package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicProvider implements Provider for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider. Extra request
// options (base URL, retries) are passed to the SDK client.
func NewAnthropicProvider(apiKey, model string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *AnthropicProvider) params(req CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, rest := splitSystem(req.Messages)
	if req.JSON {
		system += "\n\nRespond with a single JSON object and nothing else."
	}

	msgs := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	msg, err := p.client.Messages.New(ctx, p.params(req))
	if err != nil {
		return CompletionResponse{}, wrapAnthropicError(err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return CompletionResponse{}, fmt.Errorf("anthropic: no text content in response")
	}

	return CompletionResponse{
		Content:      content,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (p *AnthropicProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(req))

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		done := StreamChunk{Done: true}
		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				done.InputTokens = int(event.Message.Usage.InputTokens)
			case anthropic.MessageDeltaEvent:
				done.OutputTokens = int(event.Usage.OutputTokens)
			case anthropic.ContentBlockDeltaEvent:
				text, ok := event.Delta.AsAny().(anthropic.TextDelta)
				if !ok || text.Text == "" {
					continue
				}
				if !send(ctx, ch, StreamChunk{Content: text.Text}) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, StreamChunk{Error: wrapAnthropicError(err)})
			return
		}
		send(ctx, ch, done)
	}()
	return ch, nil
}

func (p *AnthropicProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-sonnet-4-6", Name: "Claude Sonnet", MaxTokens: 200000, Description: "Balanced Anthropic model"},
		{ID: "claude-haiku-4-5", Name: "Claude Haiku", MaxTokens: 200000, Description: "Fast, affordable Anthropic model"},
	}
}

func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, CompletionRequest{
		Messages:  []Message{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic api error (status %d): %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("anthropic: %w", err)
}
