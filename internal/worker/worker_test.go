package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	err     error
	expired int
}

func (f *fakeSweeper) ExpireOverdue(_ context.Context, createdBefore time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, createdBefore)
	return f.expired, f.err
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger(t *testing.T) *zerolog.Logger {
	t.Helper()
	l := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.Disabled)
	return &l
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, Factor: 2}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 10*time.Second, b.Delay(10), "clamped at Max")
	assert.Equal(t, time.Second, b.Delay(0), "failure count below 1 treated as first")

	zero := Backoff{}
	assert.Equal(t, time.Second, zero.Delay(1), "defaults applied")
	assert.Equal(t, 2*time.Second, zero.Delay(2), "unbounded when Max is zero")
}

func TestSweepCutoff(t *testing.T) {
	sweeper := &fakeSweeper{expired: 2}
	w := NewExpiryWorker(sweeper, 48*time.Hour, time.Minute, testLogger(t))

	before := time.Now().Add(-48 * time.Hour)
	require.NoError(t, w.Sweep(context.Background()))
	after := time.Now().Add(-48 * time.Hour)

	require.Len(t, sweeper.cutoffs, 1)
	cutoff := sweeper.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
}

func TestSweepError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("store offline")}
	w := NewExpiryWorker(sweeper, 48*time.Hour, time.Minute, testLogger(t))

	assert.Error(t, w.Sweep(context.Background()))
}

func TestRunSweepsImmediatelyAndStops(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := NewExpiryWorker(sweeper, 48*time.Hour, time.Hour, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.callCount() >= 1 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestNewExpiryWorkerDefaults(t *testing.T) {
	w := NewExpiryWorker(&fakeSweeper{}, 0, 0, testLogger(t))
	assert.Equal(t, 48*time.Hour, w.paymentWindow)
	assert.Equal(t, 15*time.Minute, w.sweepInterval)
}
