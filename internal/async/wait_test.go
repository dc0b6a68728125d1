// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns a concurrency-safe rand source that yields vals in
// order and then repeats the last one.
func sequence(vals ...float64) func() float64 {
	var mu sync.Mutex
	i := 0
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		v := vals[min(i, len(vals)-1)]
		i++
		return v
	}
}

func newTestWaiter(vals ...float64) *Waiter {
	return NewWaiter(WithUnit(time.Millisecond), WithRand(sequence(vals...)))
}

func TestWaitRandom(t *testing.T) {
	w := newTestWaiter(0.5)

	start := time.Now()
	got, err := w.WaitRandom(context.Background(), 20)
	require.NoError(t, err)

	assert.Equal(t, 10.0, got)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitRandom_ZeroMaxDelay(t *testing.T) {
	w := newTestWaiter(0.9)

	got, err := w.WaitRandom(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestWaitRandom_NegativeMaxDelay(t *testing.T) {
	w := newTestWaiter(0.5)

	_, err := w.WaitRandom(context.Background(), -1)
	assert.Error(t, err)
}

func TestWaitRandom_Cancelled(t *testing.T) {
	w := NewWaiter(WithRand(sequence(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := w.WaitRandom(ctx, 60)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskWaitRandom(t *testing.T) {
	w := newTestWaiter(0.25)

	task := w.TaskWaitRandom(context.Background(), 40)
	require.NotNil(t, task)

	got, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
}

func TestWaitN_CompletionOrder(t *testing.T) {
	tests := []struct {
		name string
		fn   func(w *Waiter) ([]float64, error)
	}{
		{"WaitN", func(w *Waiter) ([]float64, error) { return w.WaitN(context.Background(), 3, 100) }},
		{"TaskWaitN", func(w *Waiter) ([]float64, error) { return w.TaskWaitN(context.Background(), 3, 100) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWaiter(0.9, 0.1, 0.5)

			got, err := tt.fn(w)
			require.NoError(t, err)
			assert.Equal(t, []float64{10, 50, 90}, got)
		})
	}
}

func TestWaitN_ZeroN(t *testing.T) {
	w := newTestWaiter(0.5)

	got, err := w.WaitN(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestWaitN_Cancelled(t *testing.T) {
	w := NewWaiter(WithRand(sequence(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := w.WaitN(ctx, 5, 60)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMeasureTime(t *testing.T) {
	w := newTestWaiter(1)

	got, err := w.MeasureTime(context.Background(), 4, 20)
	require.NoError(t, err)

	// Four concurrent 20ms waits take about 20ms in total.
	assert.GreaterOrEqual(t, got, 5*time.Millisecond)
	assert.Less(t, got, 20*time.Millisecond)
}

func TestMeasureTime_InvalidN(t *testing.T) {
	_, err := newTestWaiter(1).MeasureTime(context.Background(), 0, 10)
	assert.Error(t, err)
}
