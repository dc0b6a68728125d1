// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package async

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Waiter sleeps for random delays. The zero value is not usable; create
// one with NewWaiter.
type Waiter struct {
	unit time.Duration
	rand func() float64
	log  *slog.Logger
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithUnit sets the duration of one delay unit. Defaults to one second.
func WithUnit(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.unit = d
	}
}

// WithRand sets the source of uniform values in [0, 1). It must be safe
// for concurrent use.
func WithRand(fn func() float64) WaiterOption {
	return func(w *Waiter) {
		w.rand = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) WaiterOption {
	return func(w *Waiter) {
		w.log = l
	}
}

// NewWaiter creates a Waiter. By default delays are measured in seconds
// and drawn from math/rand/v2.
func NewWaiter(opts ...WaiterOption) *Waiter {
	w := &Waiter{
		unit: time.Second,
		rand: rand.Float64,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var defaultWaiter = NewWaiter()

// WaitRandom waits a random delay between 0 and maxDelay units and
// returns it. If ctx is done first the wait is abandoned and ctx's error
// returned.
func (w *Waiter) WaitRandom(ctx context.Context, maxDelay int) (float64, error) {
	if maxDelay < 0 {
		return 0, fmt.Errorf("async: max delay must be non-negative, got %d", maxDelay)
	}

	delay := w.rand() * float64(maxDelay)

	timer := time.NewTimer(time.Duration(delay * float64(w.unit)))
	defer timer.Stop()

	select {
	case <-timer.C:
		w.log.DebugContext(ctx, "wait finished", slog.Float64("delay", delay))
		return delay, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// TaskWaitRandom starts WaitRandom in a Task and returns immediately.
func (w *Waiter) TaskWaitRandom(ctx context.Context, maxDelay int) *Task[float64] {
	return Go(ctx, func(ctx context.Context) (float64, error) {
		return w.WaitRandom(ctx, maxDelay)
	})
}

// WaitN runs n WaitRandom calls concurrently and returns their delays in
// the order they completed, which is ascending. The first error cancels
// the remaining waits.
func (w *Waiter) WaitN(ctx context.Context, n, maxDelay int) ([]float64, error) {
	return w.gather(ctx, n, func(ctx context.Context) (float64, error) {
		return w.WaitRandom(ctx, maxDelay)
	})
}

// TaskWaitN is WaitN built from TaskWaitRandom tasks.
func (w *Waiter) TaskWaitN(ctx context.Context, n, maxDelay int) ([]float64, error) {
	return w.gather(ctx, n, func(ctx context.Context) (float64, error) {
		t := w.TaskWaitRandom(ctx, maxDelay)
		defer t.Cancel()
		return t.Wait(ctx)
	})
}

// gather runs fn n times concurrently, collecting results as they finish.
func (w *Waiter) gather(ctx context.Context, n int, fn func(context.Context) (float64, error)) ([]float64, error) {
	if n <= 0 {
		return []float64{}, nil
	}

	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	delays := make([]float64, 0, n)

	for range n {
		g.Go(func() error {
			d, err := fn(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return delays, nil
}

// MeasureTime returns the average wall time per wait of WaitN(n, maxDelay).
func (w *Waiter) MeasureTime(ctx context.Context, n, maxDelay int) (time.Duration, error) {
	if n <= 0 {
		return 0, fmt.Errorf("async: n must be positive, got %d", n)
	}

	start := time.Now()
	if _, err := w.WaitN(ctx, n, maxDelay); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	w.log.DebugContext(ctx, "measured wait time",
		slog.Int("n", n),
		slog.Int("max_delay", maxDelay),
		slog.Duration("elapsed", elapsed),
	)
	return elapsed / time.Duration(n), nil
}

// WaitRandom waits a random delay of up to maxDelay seconds using the
// default Waiter.
func WaitRandom(ctx context.Context, maxDelay int) (float64, error) {
	return defaultWaiter.WaitRandom(ctx, maxDelay)
}

// TaskWaitRandom starts WaitRandom on the default Waiter in a Task.
func TaskWaitRandom(ctx context.Context, maxDelay int) *Task[float64] {
	return defaultWaiter.TaskWaitRandom(ctx, maxDelay)
}

// WaitN calls WaitN on the default Waiter.
func WaitN(ctx context.Context, n, maxDelay int) ([]float64, error) {
	return defaultWaiter.WaitN(ctx, n, maxDelay)
}

// TaskWaitN calls TaskWaitN on the default Waiter.
func TaskWaitN(ctx context.Context, n, maxDelay int) ([]float64, error) {
	return defaultWaiter.TaskWaitN(ctx, n, maxDelay)
}

// MeasureTime calls MeasureTime on the default Waiter.
func MeasureTime(ctx context.Context, n, maxDelay int) (time.Duration, error) {
	return defaultWaiter.MeasureTime(ctx, n, maxDelay)
}
