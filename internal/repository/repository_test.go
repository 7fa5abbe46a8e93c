package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"recinto/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func sampleIntervals() []models.OccupiedInterval {
	return []models.OccupiedInterval{
		{ResourceID: 1, Start: day("2030-03-05"), End: day("2030-03-08")},
		{ResourceID: 1, Start: day("2030-03-12"), End: day("2030-03-15")},
	}
}

func TestMemoryIntervalCache(t *testing.T) {
	cache := NewMemoryIntervalCache(50 * time.Millisecond)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, 1, sampleIntervals()))

	got, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)

	t.Run("invalidate removes the entry", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, 1))
		_, ok, err := cache.Get(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, 2, sampleIntervals()))
		time.Sleep(80 * time.Millisecond)
		_, ok, err := cache.Get(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRedisIntervalCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewRedisIntervalCache(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, 1, sampleIntervals()))

		got, ok, err := cache.Get(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ResourceID)
		assert.True(t, got[0].Start.Equal(day("2030-03-05")))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, 999)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, 2, sampleIntervals()))
		require.NoError(t, cache.Invalidate(ctx, 2))
		_, ok, err := cache.Get(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DownServer", func(t *testing.T) {
		s.Close()
		_, _, err := cache.Get(ctx, 1)
		assert.Error(t, err)
	})
}

type failingCache struct {
	err error
}

func (f *failingCache) Get(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, bool, error) {
	return nil, false, f.err
}
func (f *failingCache) Set(ctx context.Context, resourceID int64, intervals []models.OccupiedInterval) error {
	return f.err
}
func (f *failingCache) Invalidate(ctx context.Context, resourceID int64) error {
	return f.err
}

func TestFailoverIntervalCache(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingCache{err: errors.New("redis down")}
	fallback := NewMemoryIntervalCache(time.Hour)
	cache := NewFailoverIntervalCache(primary, fallback, &logger)
	ctx := context.Background()

	// First write fails over to memory.
	require.NoError(t, cache.Set(ctx, 1, sampleIntervals()))

	got, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)

	// Invalidate reaches the fallback even while the primary is down.
	require.NoError(t, cache.Invalidate(ctx, 1))
	_, ok, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailoverPrefersHealthyPrimary(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemoryIntervalCache(time.Hour)
	fallback := NewMemoryIntervalCache(time.Hour)
	cache := NewFailoverIntervalCache(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 1, sampleIntervals()))

	// The write landed on the primary, not the fallback.
	_, ok, err := primary.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = fallback.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
