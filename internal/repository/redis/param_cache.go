package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daonbank/kcs/kcs-backend/internal/service"
)

// ParamCache stores resolved regulation parameters in Redis. Entries expire
// on their own; parameter writes additionally invalidate every cached
// resolution of the changed key.
type ParamCache struct {
	client *redis.Client
}

func NewParamCache(client *redis.Client) *ParamCache {
	return &ParamCache{client: client}
}

func (c *ParamCache) Get(ctx context.Context, key string) (*service.ResolvedParam, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var resolved service.ResolvedParam
	if err := json.Unmarshal(data, &resolved); err != nil {
		return nil, false, fmt.Errorf("decode cached param %s: %w", key, err)
	}
	return &resolved, true, nil
}

func (c *ParamCache) Set(ctx context.Context, key string, value *service.ResolvedParam, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode param %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes every cached resolution of a parameter key. Cache
// entries are keyed param:<key>:<condition>:<minute>, so one pattern
// covers all condition and time buckets.
func (c *ParamCache) Invalidate(ctx context.Context, paramKey string) error {
	pattern := "param:" + paramKey + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	var stale []string
	for iter.Next(ctx) {
		stale = append(stale, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(stale) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, stale...).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", pattern, err)
	}
	return nil
}
