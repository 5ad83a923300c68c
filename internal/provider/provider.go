package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/mailsift/internal/models"
)

// ErrMalformedResponse marks a provider answer that could not be normalized.
// The dispatcher retries these immediately.
var ErrMalformedResponse = errors.New("malformed provider response")

// Config describes one AI backend. It is immutable once the registry is built.
type Config struct {
	Name              string
	Kind              string
	BaseURL           string
	APIKey            string
	Model             string
	Models            map[models.TaskType]string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequireAuth       bool
	RetryAttempts     int
	RetryDelay        time.Duration
	MaxConcurrent     int
	RequestsPerMinute int
}

// ModelFor returns the task specific model, or the default model.
func (c Config) ModelFor(task models.TaskType) string {
	if m := c.Models[task]; m != "" {
		return m
	}
	return c.Model
}

// Payload is the content submitted for a task.
type Payload struct {
	Content  string
	Kind     models.RecordKind
	Filename string
}

// Response is the provider-agnostic answer. Label and Confidence are set for
// classification, Fields for extraction and attachment tasks.
type Response struct {
	Label        models.Category
	Confidence   *float64
	Reasoning    string
	Fields       map[string]any
	Raw          string
	Provider     string
	FallbackUsed bool
}

// Provider is one AI backend adapter.
type Provider interface {
	Name() string
	Submit(ctx context.Context, task models.TaskType, payload Payload, cfg Config) (Response, error)
}

// StatusError is a non-2xx HTTP answer from a backend.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.Code, e.Body)
}

// ConfigurationError is a missing or invalid provider binding. It is only
// ever returned while the registry is built.
type ConfigurationError struct {
	Task     models.TaskType
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Task != "" && e.Provider != "":
		return fmt.Sprintf("configuration error: task %s, provider %s: %s", e.Task, e.Provider, e.Reason)
	case e.Task != "":
		return fmt.Sprintf("configuration error: task %s: %s", e.Task, e.Reason)
	case e.Provider != "":
		return fmt.Sprintf("configuration error: provider %s: %s", e.Provider, e.Reason)
	}
	return "configuration error: " + e.Reason
}
