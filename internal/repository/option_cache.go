package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// OptionCache keeps catalog option lists close to the API.
type OptionCache interface {
	// Get reports a miss with ok=false and a nil error.
	Get(ctx context.Context, kind string) (options []string, ok bool, err error)
	Set(ctx context.Context, kind string, options []string, ttl time.Duration) error
}

type redisOptionCache struct {
	client *redis.Client
	prefix string
}

// NewRedisOptionCache stores option lists as JSON strings under "catalog:<kind>".
func NewRedisOptionCache(client *redis.Client) OptionCache {
	return &redisOptionCache{client: client, prefix: "catalog:"}
}

func (c *redisOptionCache) Get(ctx context.Context, kind string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+kind).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var options []string
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, false, err
	}
	return options, true, nil
}

func (c *redisOptionCache) Set(ctx context.Context, kind string, options []string, ttl time.Duration) error {
	raw, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+kind, raw, ttl).Err()
}
