package provider

import (
	"fmt"
	"sort"
	"time"

	"github.com/xaenox/mailsift/internal/models"
)

const (
	DefaultRetryAttempts = 3
	DefaultTimeout       = 60 * time.Second
	DefaultMaxConcurrent = 4
)

// Factory builds an adapter for a provider config.
type Factory func(cfg Config) (Provider, error)

// Factories maps an adapter kind to its constructor.
type Factories map[string]Factory

// DefaultFactories returns the built-in adapter kinds.
func DefaultFactories() Factories {
	f := Factories{}
	f.Register("openai", NewOpenAI)
	f.Register("deepseek", NewOpenAI)
	f.Register("openai_compatible", NewOpenAI)
	f.Register("anthropic", NewAnthropic)
	f.Register("no_auth", NewNoAuth)
	return f
}

func (f Factories) Register(kind string, factory Factory) {
	f[kind] = factory
}

// TaskBinding names the providers serving a task.
type TaskBinding struct {
	Primary  string
	Fallback string
}

// Endpoint is a ready adapter with its config.
type Endpoint struct {
	Config   Config
	Provider Provider
}

// Binding is the resolved primary and optional fallback for a task.
type Binding struct {
	Task     models.TaskType
	Primary  Endpoint
	Fallback *Endpoint
}

// Registry holds every configured backend and the per-task bindings. It is
// read-only after NewRegistry returns.
type Registry struct {
	endpoints map[string]Endpoint
	bindings  map[models.TaskType]Binding
}

// NewRegistry validates the configuration and builds all adapters. Any
// problem is reported as a *ConfigurationError.
func NewRegistry(configs []Config, tasks map[models.TaskType]TaskBinding, factories Factories) (*Registry, error) {
	r := &Registry{
		endpoints: make(map[string]Endpoint, len(configs)),
		bindings:  make(map[models.TaskType]Binding, len(tasks)),
	}

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, &ConfigurationError{Reason: "provider without a name"}
		}
		if _, dup := r.endpoints[cfg.Name]; dup {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "defined twice"}
		}
		cfg = withDefaults(cfg)
		if cfg.RequireAuth && cfg.APIKey == "" {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: "api key required but not set"}
		}
		factory, ok := factories[cfg.Kind]
		if !ok {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: fmt.Sprintf("unknown kind %q", cfg.Kind)}
		}
		p, err := factory(cfg)
		if err != nil {
			return nil, &ConfigurationError{Provider: cfg.Name, Reason: err.Error()}
		}
		r.endpoints[cfg.Name] = Endpoint{Config: cfg, Provider: p}
	}

	for _, task := range models.TaskTypes {
		tb, ok := tasks[task]
		if !ok || tb.Primary == "" {
			return nil, &ConfigurationError{Task: task, Reason: "no primary provider"}
		}
		primary, ok := r.endpoints[tb.Primary]
		if !ok {
			return nil, &ConfigurationError{Task: task, Provider: tb.Primary, Reason: "primary provider not defined"}
		}
		b := Binding{Task: task, Primary: primary}
		if tb.Fallback != "" {
			if tb.Fallback == tb.Primary {
				return nil, &ConfigurationError{Task: task, Provider: tb.Fallback, Reason: "fallback must differ from primary"}
			}
			fb, ok := r.endpoints[tb.Fallback]
			if !ok {
				return nil, &ConfigurationError{Task: task, Provider: tb.Fallback, Reason: "fallback provider not defined"}
			}
			b.Fallback = &fb
		}
		r.bindings[task] = b
	}
	for task := range tasks {
		if !task.Valid() {
			return nil, &ConfigurationError{Task: task, Reason: "unknown task type"}
		}
	}

	return r, nil
}

func withDefaults(cfg Config) Config {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return cfg
}

// Resolve returns the binding for a task.
func (r *Registry) Resolve(task models.TaskType) (Binding, error) {
	b, ok := r.bindings[task]
	if !ok {
		return Binding{}, &ConfigurationError{Task: task, Reason: "no primary provider"}
	}
	return b, nil
}

// Endpoints returns every configured endpoint sorted by name.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Config.Name < out[j].Config.Name })
	return out
}
