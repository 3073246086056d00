// Package cache keeps GET /v1/monthly results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navid-fn/ethmetrics/internal/storage/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ethmetrics:monthly:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func monthlyKey(months int) string {
	return fmt.Sprintf("%s%d", keyPrefix, months)
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetMonthly returns the cached list for a months window. A miss is (nil, false, nil).
func (c *RedisCache) GetMonthly(ctx context.Context, months int) ([]models.MonthlyMetrics, bool, error) {
	data, err := c.client.Get(ctx, monthlyKey(months)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get monthly metrics from redis: %w", err)
	}

	var recs []models.MonthlyMetrics
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal monthly metrics: %w", err)
	}
	return recs, true, nil
}

func (c *RedisCache) SetMonthly(ctx context.Context, months int, recs []models.MonthlyMetrics) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal monthly metrics: %w", err)
	}
	if err := c.client.Set(ctx, monthlyKey(months), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set monthly metrics in redis: %w", err)
	}
	return nil
}

// InvalidateMonthly drops every cached months window.
func (c *RedisCache) InvalidateMonthly(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete monthly keys: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
