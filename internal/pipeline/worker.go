package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xaenox/mailsift/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source yields batches of raw messages. An empty batch means nothing is
// pending right now.
type Source interface {
	Fetch(ctx context.Context, max int) ([]models.Message, error)
}

type WorkerConfig struct {
	BatchSize   int
	Concurrency int
	ErrorDelay  time.Duration
}

type Worker struct {
	source    Source
	processor *Processor
	cfg       WorkerConfig
	logger    *zap.Logger
}

// BatchResult counts the messages of one batch.
type BatchResult struct {
	Processed int
	Failed    int
}

func NewWorker(source Source, processor *Processor, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = 5 * time.Second
	}
	return &Worker{source: source, processor: processor, cfg: cfg, logger: logger}
}

// Run fetches and processes batches until ctx is cancelled. The batch in
// flight at cancellation is finished first.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started",
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("concurrency", w.cfg.Concurrency))

	for {
		if ctx.Err() != nil {
			w.logger.Info("Worker stopped")
			return nil
		}

		msgs, err := w.source.Fetch(ctx, w.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.cfg.ErrorDelay):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		res := w.RunBatch(ctx, msgs)
		w.logger.Info("Batch finished",
			zap.Int("processed", res.Processed),
			zap.Int("failed", res.Failed))
	}
}

// RunBatch processes msgs concurrently. Cancelling ctx does not interrupt
// messages already started: provider calls end on their own timeouts and
// persistence is never cut off mid-write.
func (w *Worker) RunBatch(ctx context.Context, msgs []models.Message) BatchResult {
	work := context.WithoutCancel(ctx)

	var processed, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, msg := range msgs {
		msg := msg
		g.Go(func() error {
			if _, err := w.processor.Process(work, msg); err != nil {
				failed.Add(1)
				w.logger.Error("Failed to process message",
					zap.String("message_id", msg.ID),
					zap.Error(err))
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return BatchResult{Processed: int(processed.Load()), Failed: int(failed.Load())}
}
