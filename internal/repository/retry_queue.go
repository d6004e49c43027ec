package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RetryQueue collects descriptors of ledger writes that failed after the
// primary write succeeded. Nothing drains it automatically.
type RetryQueue interface {
	Push(ctx context.Context, item any) error
	Len(ctx context.Context) (int64, error)
}

type redisRetryQueue struct {
	client *redis.Client
	key    string
}

// NewRedisRetryQueue appends JSON items to the Redis list at key.
func NewRedisRetryQueue(client *redis.Client, key string) RetryQueue {
	return &redisRetryQueue{client: client, key: key}
}

func (q *redisRetryQueue) Push(ctx context.Context, item any) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, raw).Err()
}

func (q *redisRetryQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
