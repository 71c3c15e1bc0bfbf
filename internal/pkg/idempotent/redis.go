package idempotent

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Strategy = (*RedisStrategy)(nil)

// RedisStrategy 幂等策略的 redis 实现
type RedisStrategy struct {
	client  redis.Cmdable
	prefix  string
	expires time.Duration
}

func (r *RedisStrategy) Exists(ctx context.Context, key string) (bool, error) {
	res, err := r.client.SetNX(ctx, r.redisKey(key), 1, r.expires).Result()
	if err != nil {
		return false, err
	}
	return !res, nil
}

func (r *RedisStrategy) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.redisKey(key)).Err()
}

func (r *RedisStrategy) redisKey(key string) string {
	return r.prefix + ":idempotent:" + key
}

func NewRedisStrategy(client redis.Cmdable, prefix string, expires time.Duration) *RedisStrategy {
	return &RedisStrategy{
		client:  client,
		prefix:  prefix,
		expires: expires,
	}
}
