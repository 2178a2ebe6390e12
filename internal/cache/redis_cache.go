package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"stokgudang/backend/internal/domain"
)

type RedisStockCache struct {
	client *redis.Client
}

func NewRedisStockCache(addr string, password string, db int) *RedisStockCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStockCache{client: client}
}

func (c *RedisStockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStockCache) Close() error {
	return c.client.Close()
}

func cacheKey(locationID string) string {
	return "stock-levels:" + locationID
}

func (c *RedisStockCache) Get(ctx context.Context, locationID string) ([]domain.StockLevel, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(locationID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var levels []domain.StockLevel
	if err := json.Unmarshal([]byte(val), &levels); err != nil {
		return nil, false, err
	}
	return levels, true, nil
}

func (c *RedisStockCache) Set(ctx context.Context, locationID string, levels []domain.StockLevel, ttl time.Duration) error {
	if levels == nil {
		return nil
	}
	payload, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(locationID), payload, ttl).Err()
}

func (c *RedisStockCache) Invalidate(ctx context.Context, locationIDs ...string) error {
	if len(locationIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(locationIDs))
	for _, id := range locationIDs {
		keys = append(keys, cacheKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
