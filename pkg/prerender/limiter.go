package prerender

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of hook calls, file loads and writes in flight.
// One Limiter is shared by every phase of a run.
type Limiter struct {
	sem   *semaphore.Weighted
	width int

	inFlight atomic.Int64
	onChange func(inFlight int64)
}

// NewLimiter creates a limiter with width permits. A width below 1 is
// treated as 1.
func NewLimiter(width int) *Limiter {
	if width < 1 {
		width = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(width)), width: width}
}

// Width returns the number of permits.
func (l *Limiter) Width() int {
	return l.width
}

// InFlight returns the number of tasks currently holding a permit.
func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}

// Do runs fn once a permit is free and releases the permit when fn
// returns. It fails without running fn when ctx is done first.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.changed(l.inFlight.Add(1))
	defer func() {
		l.changed(l.inFlight.Add(-1))
		l.sem.Release(1)
	}()
	return fn(ctx)
}

func (l *Limiter) changed(n int64) {
	if l.onChange != nil {
		l.onChange(n)
	}
}

// Each runs fn for 0 <= i < n, each call under the limiter. The first error
// cancels the batch: queued calls don't start, calls in flight finish and
// their results are discarded.
func (l *Limiter) Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return l.Do(gctx, func(ctx context.Context) error {
				return fn(ctx, i)
			})
		})
	}
	return g.Wait()
}
