// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

package utils

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClass mirrors a type exposing a memoized property backed by a method.
type testClass struct {
	aMethod   func() int
	aProperty *Memo[int]
}

func newTestClass(aMethod func() int) *testClass {
	c := &testClass{aMethod: aMethod}
	c.aProperty = Memoize(func(context.Context) (int, error) {
		return c.aMethod(), nil
	})
	return c
}

func TestMemoize(t *testing.T) {
	calls := 0
	c := newTestClass(func() int {
		calls++
		return 42
	})

	ctx := context.Background()
	first, err := c.aProperty.Get(ctx)
	require.NoError(t, err)
	second, err := c.aProperty.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 42, first)
	assert.Equal(t, 42, second)
	assert.Equal(t, 1, calls, "a_method should be called exactly once")
}

func TestMemoize_ErrorNotCached(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	m := Memoize(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "ok", nil
	})

	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, boom)

	got, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestMemoize_Concurrent(t *testing.T) {
	var calls atomic.Int32
	m := Memoize(func(context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoize_Reset(t *testing.T) {
	calls := 0
	m := Memoize(func(context.Context) (int, error) {
		calls++
		return calls, nil
	})

	v, _ := m.Get(context.Background())
	assert.Equal(t, 1, v)

	m.Reset()

	v, _ = m.Get(context.Background())
	assert.Equal(t, 2, v)
}

func TestMemoize_WaiterHonorsContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	m := Memoize(func(context.Context) (int, error) {
		close(entered)
		<-release
		return 9, nil
	})

	first := make(chan int, 1)
	go func() {
		v, err := m.Get(context.Background())
		assert.NoError(t, err)
		first <- v
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.Equal(t, 9, <-first)

	v, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}
