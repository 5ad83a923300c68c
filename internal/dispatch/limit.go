package dispatch

import (
	"context"

	"github.com/xaenox/mailsift/internal/provider"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// limit caps in-flight calls and request rate toward one provider.
type limit struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func newLimit(cfg provider.Config) *limit {
	l := &limit{}
	if cfg.MaxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.MaxConcurrent
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	return l
}

func (l *limit) acquire(ctx context.Context) (func(), error) {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	release := func() {
		if l.sem != nil {
			l.sem.Release(1)
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}
