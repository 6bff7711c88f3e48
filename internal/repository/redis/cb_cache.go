package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daonbank/kcs/kcs-backend/internal/domain"
)

// CBCache stores bureau reports in Redis keyed by identity token, so repeat
// evaluations within the freshness window skip the bureau call.
type CBCache struct {
	client *redis.Client
}

func NewCBCache(client *redis.Client) *CBCache {
	return &CBCache{client: client}
}

func (c *CBCache) Get(ctx context.Context, key string) (*domain.CBReport, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var report domain.CBReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("decode cached report %s: %w", key, err)
	}
	return &report, true, nil
}

func (c *CBCache) Set(ctx context.Context, key string, report *domain.CBReport, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
