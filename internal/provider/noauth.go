package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xaenox/mailsift/internal/models"
)

const maxNoAuthBody = 1 << 20

// NoAuth calls a self-hosted inference service that exposes plain JSON
// endpoints without credentials: /classify, /extract_case for projects and
// /extract_cv for engineers.
type NoAuth struct {
	name    string
	baseURL string
	client  *http.Client
}

type noAuthRequest struct {
	Content     string  `json:"content"`
	Model       string  `json:"model,omitempty"`
	Schema      string  `json:"schema,omitempty"`
	Filename    string  `json:"filename,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

func NewNoAuth(cfg Config) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required for kind %s", cfg.Kind)
	}
	return &NoAuth{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{},
	}, nil
}

func (p *NoAuth) Name() string { return p.name }

func (p *NoAuth) Submit(ctx context.Context, task models.TaskType, payload Payload, cfg Config) (Response, error) {
	path := "/extract_case"
	switch {
	case task == models.TaskClassification:
		path = "/classify"
	case payload.Kind == models.KindEngineer:
		path = "/extract_cv"
	}

	body, err := json.Marshal(noAuthRequest{
		Content:     payload.Content,
		Model:       cfg.ModelFor(task),
		Schema:      string(payload.Kind),
		Filename:    payload.Filename,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxNoAuthBody))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &StatusError{Provider: p.name, Code: resp.StatusCode, Body: string(raw)}
	}

	return Normalize(task, string(raw))
}
