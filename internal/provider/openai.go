package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/mailsift/internal/models"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// OpenAI talks to OpenAI and to any endpoint speaking its chat completion
// protocol (DeepSeek, self-hosted gateways).
type OpenAI struct {
	name   string
	client *openai.Client
}

func NewOpenAI(cfg Config) (Provider, error) {
	c := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		c.BaseURL = cfg.BaseURL
	case cfg.Kind == "deepseek":
		c.BaseURL = deepseekBaseURL
	case cfg.Kind == "openai_compatible":
		return nil, fmt.Errorf("base_url is required for kind %s", cfg.Kind)
	}
	return &OpenAI{name: cfg.Name, client: openai.NewClientWithConfig(c)}, nil
}

func (p *OpenAI) Name() string { return p.name }

func (p *OpenAI) Submit(ctx context.Context, task models.TaskType, payload Payload, cfg Config) (Response, error) {
	system, user := Prompt(task, payload)

	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: cfg.ModelFor(task),
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: user,
				},
			},
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		},
	)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, &StatusError{Provider: p.name, Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return Normalize(task, resp.Choices[0].Message.Content)
}
