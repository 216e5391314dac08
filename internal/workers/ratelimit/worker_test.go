package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	mu      sync.Mutex
	results map[int64][]int64 // -1 means error
	calls   int
}

func (c *scriptedChecker) RefreshBudget(_ context.Context, id int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	seq := c.results[id]
	if len(seq) == 0 {
		return 5000, nil
	}
	v := seq[0]
	if len(seq) > 1 {
		c.results[id] = seq[1:]
	}
	if v < 0 {
		return 0, errors.New("github down")
	}
	return v, nil
}

func newTestWorker(checker Checker, ids ...int64) *Worker {
	return NewWorker(checker, ids, 500, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (w *Worker) snapshot(id int64) tokenStatus {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()

	st, ok := w.statuses[id]
	if !ok {
		return tokenStatus{}
	}
	return *st
}

func TestCheckAllTracksThrottling(t *testing.T) {
	checker := &scriptedChecker{results: map[int64][]int64{
		1: {4000, 100, 50, 4999},
	}}
	w := newTestWorker(checker, 1)
	ctx := context.Background()

	w.CheckAll(ctx)
	assert.False(t, w.snapshot(1).throttled)

	w.CheckAll(ctx)
	assert.True(t, w.snapshot(1).throttled)
	assert.Equal(t, 1, w.snapshot(1).throttledCount)

	w.CheckAll(ctx)
	assert.True(t, w.snapshot(1).throttled)
	assert.Equal(t, 2, w.snapshot(1).throttledCount)

	w.CheckAll(ctx)
	assert.False(t, w.snapshot(1).throttled)
	assert.Zero(t, w.snapshot(1).throttledCount)

	assert.Equal(t, tokenStatus{}, w.snapshot(99), "unknown token")
}

func TestCheckAllKeepsFailuresApartFromThrottling(t *testing.T) {
	checker := &scriptedChecker{results: map[int64][]int64{
		1: {-1, -1, 4000, 100, -1, 100},
	}}
	w := newTestWorker(checker, 1)
	ctx := context.Background()

	w.CheckAll(ctx)
	w.CheckAll(ctx)
	st := w.snapshot(1)
	assert.False(t, st.throttled, "a failed check is not a margin breach")
	assert.Equal(t, 2, st.failedChecks)

	w.CheckAll(ctx)
	st = w.snapshot(1)
	assert.False(t, st.throttled)
	assert.Zero(t, st.failedChecks)

	w.CheckAll(ctx)
	assert.True(t, w.snapshot(1).throttled)

	// a failure while throttled keeps the token throttled
	w.CheckAll(ctx)
	st = w.snapshot(1)
	assert.True(t, st.throttled)
	assert.Equal(t, 1, st.failedChecks)
	assert.Equal(t, 1, st.throttledCount)

	w.CheckAll(ctx)
	st = w.snapshot(1)
	assert.True(t, st.throttled)
	assert.Zero(t, st.failedChecks)
	assert.Equal(t, 2, st.throttledCount)
}

func TestCheckAllStopsOnCancel(t *testing.T) {
	checker := &scriptedChecker{}
	w := newTestWorker(checker, 1, 2, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.CheckAll(ctx)
	assert.Zero(t, checker.calls)
}

func TestStartStop(t *testing.T) {
	checker := &scriptedChecker{}
	w := newTestWorker(checker, 1)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		checker.mu.Lock()
		defer checker.mu.Unlock()
		return checker.calls > 0
	}, time.Second, 10*time.Millisecond)
	w.Stop()

	assert.Equal(t, "rate_limit", w.Name())
}
