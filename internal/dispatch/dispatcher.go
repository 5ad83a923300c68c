// Package dispatch routes tasks to AI providers with retries, per-call
// timeouts and primary to fallback failover.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"go.uber.org/zap"
)

// Registry resolves task bindings.
type Registry interface {
	Resolve(task models.TaskType) (provider.Binding, error)
	Endpoints() []provider.Endpoint
}

// AttemptObserver receives every provider attempt.
type AttemptObserver interface {
	ObserveAttempt(a models.DispatchAttempt)
}

type Dispatcher struct {
	registry Registry
	limits   map[string]*limit
	observer AttemptObserver
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

func New(registry Registry, observer AttemptObserver, logger *zap.Logger) *Dispatcher {
	limits := make(map[string]*limit)
	for _, ep := range registry.Endpoints() {
		limits[ep.Config.Name] = newLimit(ep.Config)
	}
	return &Dispatcher{
		registry: registry,
		limits:   limits,
		observer: observer,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// Call runs the attempt schedule of the task binding until one provider
// answers. It returns a *ProviderError once every step has failed.
func (d *Dispatcher) Call(ctx context.Context, task models.TaskType, payload provider.Payload) (provider.Response, error) {
	binding, err := d.registry.Resolve(task)
	if err != nil {
		return provider.Response{}, err
	}

	steps := Schedule(binding)
	perr := &ProviderError{Task: task}
	delay := false

	for i, step := range steps {
		if i > 0 && delay && steps[i-1].Role == step.Role {
			if err := d.sleep(ctx, step.Endpoint.Config.RetryDelay); err != nil {
				perr.Interrupted = err
				return provider.Response{}, perr
			}
		}
		if err := ctx.Err(); err != nil {
			perr.Interrupted = err
			return provider.Response{}, perr
		}

		resp, outcome, err := d.attempt(ctx, task, payload, step)
		if err == nil {
			resp.Provider = step.Endpoint.Config.Name
			resp.FallbackUsed = step.Role == models.RoleFallback
			return resp, nil
		}
		perr.record(step, err)
		// a malformed answer is retried right away
		delay = outcome != models.OutcomeMalformed
	}

	return provider.Response{}, perr
}

func (d *Dispatcher) attempt(ctx context.Context, task models.TaskType, payload provider.Payload, step Step) (provider.Response, models.AttemptOutcome, error) {
	cfg := step.Endpoint.Config
	rec := models.DispatchAttempt{
		Task:      task,
		Provider:  cfg.Name,
		Role:      step.Role,
		Attempt:   step.Attempt,
		StartedAt: d.now(),
	}

	actx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var resp provider.Response
	release, err := d.limitFor(cfg).acquire(actx)
	switch {
	case err != nil && actx.Err() != nil:
		err = fmt.Errorf("waiting for provider capacity: %w", actx.Err())
	case err != nil:
		// the rate limiter refuses waits that would outlast the deadline
		err = fmt.Errorf("waiting for provider capacity: %w: %v", context.DeadlineExceeded, err)
	default:
		resp, err = step.Endpoint.Provider.Submit(actx, task, payload, cfg)
		release()
	}

	rec.EndedAt = d.now()
	rec.Outcome = outcomeOf(actx, err)
	if err != nil {
		rec.Detail = err.Error()
	}
	d.report(rec)

	return resp, rec.Outcome, err
}

func (d *Dispatcher) limitFor(cfg provider.Config) *limit {
	if l, ok := d.limits[cfg.Name]; ok {
		return l
	}
	return &limit{}
}

func (d *Dispatcher) report(rec models.DispatchAttempt) {
	fields := []zap.Field{
		zap.String("task", string(rec.Task)),
		zap.String("provider", rec.Provider),
		zap.String("role", string(rec.Role)),
		zap.Int("attempt", rec.Attempt),
		zap.Duration("latency", rec.Latency()),
		zap.String("outcome", string(rec.Outcome)),
	}
	if rec.Outcome == models.OutcomeSuccess {
		d.logger.Debug("Provider attempt", fields...)
	} else {
		d.logger.Warn("Provider attempt failed", append(fields, zap.String("detail", rec.Detail))...)
	}
	if d.observer != nil {
		d.observer.ObserveAttempt(rec)
	}
}

func outcomeOf(actx context.Context, err error) models.AttemptOutcome {
	switch {
	case err == nil:
		return models.OutcomeSuccess
	case errors.Is(err, provider.ErrMalformedResponse):
		return models.OutcomeMalformed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(actx.Err(), context.DeadlineExceeded):
		return models.OutcomeTimeout
	}
	return models.OutcomeError
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
