// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package async provides goroutine-backed tasks and random delay helpers.
package async

import (
	"context"
)

// Task is a handle to a computation running on its own goroutine.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc

	// Written once before done is closed.
	val T
	err error
}

// Go starts fn on a new goroutine and returns immediately. The context
// passed to fn is derived from ctx and is cancelled by Cancel or when fn
// returns.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(t.done)
		defer cancel()
		t.val, t.err = fn(ctx)
	}()

	return t
}

// Done returns a channel that is closed when the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done, whichever happens
// first. Giving up on ctx does not cancel the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the task's value and error and whether the task has
// finished. The value and error are zero until then.
func (t *Task[T]) Result() (T, error, bool) {
	select {
	case <-t.done:
		return t.val, t.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Cancel cancels the task's context. It does not wait for the task to
// observe the cancellation.
func (t *Task[T]) Cancel() {
	t.cancel()
}
