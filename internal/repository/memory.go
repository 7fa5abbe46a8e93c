package repository

import (
	"context"
	"sync"
	"time"

	"recinto/internal/models"
)

// MemoryIntervalCache is the in-process fallback for the occupied-interval
// read view.
type MemoryIntervalCache struct {
	entries sync.Map
	ttl     time.Duration
}

type cacheEntry struct {
	intervals []models.OccupiedInterval
	expiresAt time.Time
}

func NewMemoryIntervalCache(ttl time.Duration) *MemoryIntervalCache {
	if ttl <= 0 {
		ttl = models.IntervalCacheTTL * time.Second
	}
	return &MemoryIntervalCache{ttl: ttl}
}

func (c *MemoryIntervalCache) Get(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, bool, error) {
	val, ok := c.entries.Load(resourceID)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(resourceID)
		return nil, false, nil
	}
	out := make([]models.OccupiedInterval, len(entry.intervals))
	copy(out, entry.intervals)
	return out, true, nil
}

func (c *MemoryIntervalCache) Set(ctx context.Context, resourceID int64, intervals []models.OccupiedInterval) error {
	stored := make([]models.OccupiedInterval, len(intervals))
	copy(stored, intervals)
	c.entries.Store(resourceID, &cacheEntry{
		intervals: stored,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

func (c *MemoryIntervalCache) Invalidate(ctx context.Context, resourceID int64) error {
	c.entries.Delete(resourceID)
	return nil
}
