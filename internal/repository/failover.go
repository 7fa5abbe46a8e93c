package repository

import (
	"context"
	"sync/atomic"
	"time"

	"recinto/internal/domain"
	"recinto/internal/models"

	"github.com/rs/zerolog"
)

// FailoverIntervalCache serves from the primary cache and falls back to the
// in-memory one while the primary is down, probing for recovery after a
// minute.
type FailoverIntervalCache struct {
	primary   domain.IntervalCache
	fallback  domain.IntervalCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nanos of the last failed probe
}

func NewFailoverIntervalCache(primary, fallback domain.IntervalCache, logger *zerolog.Logger) *FailoverIntervalCache {
	return &FailoverIntervalCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverIntervalCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("Primary interval cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(time.Now().UnixNano())
}

func (c *FailoverIntervalCache) shouldProbe() bool {
	return time.Since(time.Unix(0, c.lastCheck.Load())) > time.Minute
}

func (c *FailoverIntervalCache) Get(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, bool, error) {
	if !c.isDown.Load() {
		intervals, ok, err := c.primary.Get(ctx, resourceID)
		if err == nil {
			return intervals, ok, nil
		}
		c.markDown(err)
	} else if c.shouldProbe() {
		intervals, ok, err := c.primary.Get(ctx, resourceID)
		if err == nil {
			c.isDown.Store(false)
			return intervals, ok, nil
		}
		c.lastCheck.Store(time.Now().UnixNano())
	}

	return c.fallback.Get(ctx, resourceID)
}

func (c *FailoverIntervalCache) Set(ctx context.Context, resourceID int64, intervals []models.OccupiedInterval) error {
	if !c.isDown.Load() {
		err := c.primary.Set(ctx, resourceID, intervals)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}
	return c.fallback.Set(ctx, resourceID, intervals)
}

func (c *FailoverIntervalCache) Invalidate(ctx context.Context, resourceID int64) error {
	// Invalidation must reach both layers; a stale fallback entry would
	// resurface a freed range.
	ferr := c.fallback.Invalidate(ctx, resourceID)

	if !c.isDown.Load() {
		if err := c.primary.Invalidate(ctx, resourceID); err != nil {
			c.markDown(err)
			return ferr
		}
	}
	return ferr
}
