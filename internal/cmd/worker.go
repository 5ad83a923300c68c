package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/xaenox/mailsift/internal/pipeline"
	"github.com/xaenox/mailsift/internal/queue"
	"github.com/xaenox/mailsift/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var workerHTTP bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process messages from the Redis queue",
	Long: `Pull message batches from the Redis queue, classify them, extract
records and persist the outcome. Runs until interrupted; the batch in
flight is finished before exit.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().BoolVar(&workerHTTP, "http", true, "Also serve the admin HTTP API")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url (REDIS_URL) is required for the worker")
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	q, err := queue.New(cfg.Redis.URL, cfg.Redis.Key, cfg.Worker.PollTimeout, logger)
	if err != nil {
		return err
	}
	defer q.Close()
	a.checks["redis"] = q.Ping

	worker := pipeline.NewWorker(q, a.processor, pipeline.WorkerConfig{
		BatchSize:   cfg.Worker.BatchSize,
		Concurrency: cfg.Worker.Concurrency,
		ErrorDelay:  cfg.Worker.ErrorDelay,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if workerHTTP {
		g.Go(func() error {
			h := server.NewHandler(a.processor, a.store, a.checks, logger)
			return server.Serve(gctx, cfg.HTTP.Addr, h.Router(a.metrics), logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker exited", zap.Error(err))
		return err
	}
	return nil
}
