package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/repository/cache"
	"github.com/redis/go-redis/v9"
)

var (
	//go:embed lua/snapshot_set.lua
	snapshotSetLua string
)

var _ cache.ChannelConfigCache = (*ChannelConfigRedisCache)(nil)

type ChannelConfigRedisCache struct {
	client  redis.Cmdable
	expires time.Duration
}

func (r *ChannelConfigRedisCache) Get(ctx context.Context) (domain.ConfigSnapshot, error) {
	val, err := r.client.HGet(ctx, cache.ChannelConfigKey, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ConfigSnapshot{}, cache.ErrChannelConfigCacheMiss
		}
		return domain.ConfigSnapshot{}, fmt.Errorf("[jsignage] get channel config from redis error: %w", err)
	}

	var snapshot domain.ConfigSnapshot
	if err = json.Unmarshal([]byte(val), &snapshot); err != nil {
		return domain.ConfigSnapshot{}, fmt.Errorf("[jsignage] unmarshal channel config error: %w", err)
	}
	return snapshot, nil
}

func (r *ChannelConfigRedisCache) Set(ctx context.Context, snapshot domain.ConfigSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("[jsignage] marshal channel config error: %w", err)
	}

	args := []any{
		strconv.FormatUint(snapshot.Version, 10),
		string(data),
		r.expires.Milliseconds(),
	}
	if err = r.client.Eval(ctx, snapshotSetLua, []string{cache.ChannelConfigKey}, args...).Err(); err != nil {
		return fmt.Errorf("[jsignage] set channel config to redis error: %w", err)
	}
	return nil
}

func NewChannelConfigRedisCache(rc redis.Cmdable, expires time.Duration) *ChannelConfigRedisCache {
	if expires <= 0 {
		expires = cache.DefaultExpires
	}
	return &ChannelConfigRedisCache{
		client:  rc,
		expires: expires,
	}
}
