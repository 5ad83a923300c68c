package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mailsift/internal/models"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Submit(context.Context, models.TaskType, Payload, Config) (Response, error) {
	return Response{}, nil
}

func stubFactories() Factories {
	return Factories{"stub": func(cfg Config) (Provider, error) { return stubProvider{name: cfg.Name}, nil }}
}

func allTasks(primary, fallback string) map[models.TaskType]TaskBinding {
	return map[models.TaskType]TaskBinding{
		models.TaskClassification: {Primary: primary, Fallback: fallback},
		models.TaskExtraction:     {Primary: primary, Fallback: fallback},
		models.TaskAttachment:     {Primary: primary},
	}
}

func TestNewRegistry(t *testing.T) {
	configs := []Config{
		{Name: "a", Kind: "stub"},
		{Name: "b", Kind: "stub", RetryAttempts: 5},
	}

	tests := []struct {
		name    string
		configs []Config
		tasks   map[models.TaskType]TaskBinding
		wantErr string
	}{
		{name: "valid with fallback", configs: configs, tasks: allTasks("a", "b")},
		{name: "valid without fallback", configs: configs, tasks: allTasks("a", "")},
		{
			name:    "missing task",
			configs: configs,
			tasks: map[models.TaskType]TaskBinding{
				models.TaskClassification: {Primary: "a"},
				models.TaskExtraction:     {Primary: "a"},
			},
			wantErr: "task attachment: no primary provider",
		},
		{name: "unknown primary", configs: configs, tasks: allTasks("x", ""), wantErr: "primary provider not defined"},
		{name: "unknown fallback", configs: configs, tasks: allTasks("a", "x"), wantErr: "fallback provider not defined"},
		{name: "fallback equals primary", configs: configs, tasks: allTasks("a", "a"), wantErr: "fallback must differ from primary"},
		{name: "unknown kind", configs: []Config{{Name: "a", Kind: "nope"}}, tasks: allTasks("a", ""), wantErr: `unknown kind "nope"`},
		{name: "duplicate name", configs: []Config{{Name: "a", Kind: "stub"}, {Name: "a", Kind: "stub"}}, tasks: allTasks("a", ""), wantErr: "defined twice"},
		{name: "missing api key", configs: []Config{{Name: "a", Kind: "stub", RequireAuth: true}}, tasks: allTasks("a", ""), wantErr: "api key required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.configs, tt.tasks, stubFactories())
			if tt.wantErr != "" {
				require.Error(t, err)
				var cfgErr *ConfigurationError
				assert.True(t, errors.As(err, &cfgErr))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, r)
		})
	}
}

func TestRegistryResolve(t *testing.T) {
	r, err := NewRegistry([]Config{
		{Name: "a", Kind: "stub"},
		{Name: "b", Kind: "stub", RetryAttempts: 5},
	}, allTasks("a", "b"), stubFactories())
	require.NoError(t, err)

	b, err := r.Resolve(models.TaskClassification)
	require.NoError(t, err)
	assert.Equal(t, "a", b.Primary.Config.Name)
	assert.Equal(t, DefaultRetryAttempts, b.Primary.Config.RetryAttempts)
	assert.Equal(t, DefaultTimeout, b.Primary.Config.Timeout)
	require.NotNil(t, b.Fallback)
	assert.Equal(t, "b", b.Fallback.Config.Name)
	assert.Equal(t, 5, b.Fallback.Config.RetryAttempts)

	b, err = r.Resolve(models.TaskAttachment)
	require.NoError(t, err)
	assert.Nil(t, b.Fallback)

	_, err = r.Resolve(models.TaskType("summary"))
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	eps := r.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "a", eps[0].Config.Name)
}

func TestConfigModelFor(t *testing.T) {
	cfg := Config{Model: "base", Models: map[models.TaskType]string{models.TaskExtraction: "big"}}
	assert.Equal(t, "base", cfg.ModelFor(models.TaskClassification))
	assert.Equal(t, "big", cfg.ModelFor(models.TaskExtraction))
}

func TestDefaultFactories(t *testing.T) {
	f := DefaultFactories()
	for _, kind := range []string{"openai", "deepseek", "openai_compatible", "anthropic", "no_auth"} {
		assert.Contains(t, f, kind)
	}

	_, err := NewRegistry([]Config{{Name: "local", Kind: "no_auth"}}, allTasks("local", ""), f)
	assert.ErrorContains(t, err, "base_url is required")
}

func TestRegistryConcurrencyCap(t *testing.T) {
	r, err := NewRegistry([]Config{
		{Name: "a", Kind: "stub"},
		{Name: "b", Kind: "stub", MaxConcurrent: 10},
	}, allTasks("a", "b"), stubFactories())
	require.NoError(t, err)

	b, err := r.Resolve(models.TaskExtraction)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxConcurrent, b.Primary.Config.MaxConcurrent)
	assert.Equal(t, 10, b.Fallback.Config.MaxConcurrent)
}
