package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spacegrid/internal/config"
	"spacegrid/internal/models"

	"github.com/redis/go-redis/v9"
)

const gridKeyPrefix = "spacegrid:grid:"

// RedisGridCache keeps computed day grids as JSON with a TTL.
type RedisGridCache struct {
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

func NewRedisGridCache(client *redis.Client, ttl time.Duration) *RedisGridCache {
	return &RedisGridCache{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisGridCache) Get(ctx context.Context, key string) (*models.DayGrid, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, gridKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grid from redis: %w", err)
	}

	var grid models.DayGrid
	if err := json.Unmarshal(val, &grid); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grid: %w", err)
	}
	return &grid, nil
}

func (r *RedisGridCache) Set(ctx context.Context, key string, grid *models.DayGrid) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(grid)
	if err != nil {
		return fmt.Errorf("failed to marshal grid: %w", err)
	}
	if err := r.client.Set(ctx, gridKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set grid in redis: %w", err)
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
