// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package utils

import "context"

// Memo lazily computes a value once and then returns the cached copy.
// Errors are returned to the caller but not cached, so a later Get
// retries. Callers arriving while the value is being computed wait for
// that computation instead of starting their own, or until their own
// context is done.
type Memo[T any] struct {
	fn func(context.Context) (T, error)

	// sem is a one-slot lock that waiters can abandon.
	sem   chan struct{}
	done  bool
	value T
}

// Memoize returns a Memo around fn.
func Memoize[T any](fn func(context.Context) (T, error)) *Memo[T] {
	return &Memo[T]{fn: fn, sem: make(chan struct{}, 1)}
}

// Get returns the cached value, computing it on the first call.
func (m *Memo[T]) Get(ctx context.Context) (T, error) {
	var zero T

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-m.sem }()

	if m.done {
		return m.value, nil
	}

	v, err := m.fn(ctx)
	if err != nil {
		return zero, err
	}

	m.value = v
	m.done = true
	return v, nil
}

// Reset discards the cached value. It waits for an in-flight computation
// to finish.
func (m *Memo[T]) Reset() {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	var zero T
	m.value = zero
	m.done = false
}
