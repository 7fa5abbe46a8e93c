package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recinto/internal/config"
	"recinto/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisIntervalCache shares the occupied-interval view across instances.
type RedisIntervalCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisIntervalCache(client *redis.Client, ttl time.Duration) *RedisIntervalCache {
	if ttl <= 0 {
		ttl = models.IntervalCacheTTL * time.Second
	}
	return &RedisIntervalCache{client: client, ttl: ttl}
}

func intervalKey(resourceID int64) string {
	return fmt.Sprintf("occupied:%d", resourceID)
}

func (c *RedisIntervalCache) Get(ctx context.Context, resourceID int64) ([]models.OccupiedInterval, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, intervalKey(resourceID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get intervals from redis: %w", err)
	}

	var intervals []models.OccupiedInterval
	if err := json.Unmarshal([]byte(val), &intervals); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal intervals: %w", err)
	}
	return intervals, true, nil
}

func (c *RedisIntervalCache) Set(ctx context.Context, resourceID int64, intervals []models.OccupiedInterval) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(intervals)
	if err != nil {
		return fmt.Errorf("failed to marshal intervals: %w", err)
	}
	if err := c.client.Set(ctx, intervalKey(resourceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set intervals in redis: %w", err)
	}
	return nil
}

func (c *RedisIntervalCache) Invalidate(ctx context.Context, resourceID int64) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Del(ctx, intervalKey(resourceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete intervals from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
