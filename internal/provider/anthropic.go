package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/xaenox/mailsift/internal/models"
)

const defaultAnthropicMaxTokens = 1024

// Anthropic uses the Messages API. SDK retries are disabled, the dispatcher
// owns the retry schedule.
type Anthropic struct {
	name   string
	client anthropic.Client
}

func NewAnthropic(cfg Config) (Provider, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{name: cfg.Name, client: anthropic.NewClient(opts...)}, nil
}

func (p *Anthropic) Name() string { return p.name }

func (p *Anthropic) Submit(ctx context.Context, task models.TaskType, payload Payload, cfg Config) (Response, error) {
	system, user := Prompt(task, payload)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.ModelFor(task)),
		MaxTokens:   maxTokens,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		Temperature: anthropic.Float(cfg.Temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Response{}, &StatusError{Provider: p.name, Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return Response{}, fmt.Errorf("messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return Normalize(task, b.String())
}
