package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xaenox/mailsift/internal/attachment"
	"github.com/xaenox/mailsift/internal/classifier"
	"github.com/xaenox/mailsift/internal/dispatch"
	"github.com/xaenox/mailsift/internal/extraction"
	"github.com/xaenox/mailsift/internal/notify"
	"github.com/xaenox/mailsift/internal/observability"
	"github.com/xaenox/mailsift/internal/pipeline"
	"github.com/xaenox/mailsift/internal/provider"
	"github.com/xaenox/mailsift/internal/server"
	"github.com/xaenox/mailsift/internal/storage"
	"github.com/xaenox/mailsift/pkg/config"
	"go.uber.org/zap"
)

// app is the assembled processing stack shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *prometheus.Registry
	registry  *provider.Registry
	store     storage.Storage
	processor *pipeline.Processor
	checks    map[string]server.HealthCheck
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: prometheus.NewRegistry(),
		checks:  map[string]server.HealthCheck{},
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := observability.NewRecorder(observability.NewMetrics(a.metrics), logger)

	registry, err := provider.NewRegistry(cfg.ProviderConfigs(), cfg.TaskBindings(), provider.DefaultFactories())
	if err != nil {
		return nil, err
	}
	a.registry = registry
	dispatcher := dispatch.New(registry, recorder, logger)

	tables, err := classifier.LoadTables(cfg.Classification.KeywordsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyword tables: %w", err)
	}
	scorer, err := classifier.NewScorer(tables, cfg.Classification.Weights, cfg.Classification.SpamThreshold)
	if err != nil {
		return nil, err
	}
	clf := classifier.NewConfidenceClassifier(scorer, dispatcher, cfg.ClassifierOptions(), recorder, logger)

	validator, err := extraction.NewValidator()
	if err != nil {
		return nil, err
	}
	orch := extraction.NewOrchestrator(dispatcher, validator, cfg.ExtractionOptions(), logger)

	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		a.store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		pg, err := storage.NewPostgresStorage(ctx, cfg.Database.Storage(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store = pg
		a.checks["database"] = pg.Ping
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Telegram.Token != "" && cfg.Telegram.ReviewChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ReviewChatID, logger)
		if err != nil {
			a.store.Close()
			return nil, err
		}
		notifier = tg
	}

	a.processor = pipeline.NewProcessor(clf, orch, attachment.TextExtractor{}, a.store, notifier, recorder, logger)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
