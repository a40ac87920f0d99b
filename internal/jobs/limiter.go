package jobs

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

var ErrBusy = errors.New("server busy")

// Limiter bounds the number of pipelines running at once. Streams and async
// jobs share one Limiter.
type Limiter struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewLimiter(maxConcurrent int, timeout time.Duration) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(maxConcurrent)), timeout: timeout}
}

// Acquire waits for a slot for at most the configured timeout. The returned
// release func must be called exactly once.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBusy
	}
	return func() { l.sem.Release(1) }, nil
}
