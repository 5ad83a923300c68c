package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"github.com/xaenox/mailsift/pkg/config"
	"go.uber.org/zap"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Submit(context.Context, models.TaskType, provider.Payload, provider.Config) (provider.Response, error) {
	return provider.Response{}, nil
}

func TestWriteReport(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	factories := provider.Factories{}
	factories.Register("stub", func(c provider.Config) (provider.Provider, error) {
		return stubProvider{name: c.Name}, nil
	})
	registry, err := provider.NewRegistry(
		[]provider.Config{
			{Name: "local", Kind: "stub", Model: "small"},
			{Name: "backup", Kind: "stub", Model: "large", RetryAttempts: 2},
		},
		map[models.TaskType]provider.TaskBinding{
			models.TaskClassification: {Primary: "local", Fallback: "backup"},
			models.TaskExtraction:     {Primary: "backup"},
			models.TaskAttachment:     {Primary: "backup"},
		},
		factories,
	)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, cfg, registry))

	report := out.String()
	assert.Contains(t, report, "local (stub, small, 3 attempts)")
	assert.Contains(t, report, "backup (stub, large, 2 attempts)")
	assert.Contains(t, report, "confidence threshold 0.70")
}

func TestNewAppInMemory(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-deepseek")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database.UseInMemory = true

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.processor)
	assert.Empty(t, a.checks)
	assert.Len(t, a.registry.Endpoints(), 2)
}

func TestNewAppMissingCredentials(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Database.UseInMemory = true

	_, err = newApp(context.Background(), cfg, zap.NewNop())
	var cerr *provider.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
