package cache

import (
	"context"
	"errors"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
)

const (
	ChannelConfigKey = "jsignage:channel_config:latest"
	DefaultExpires   = 15 * time.Minute
)

var ErrChannelConfigCacheMiss = errors.New("[jsignage] channel config cache miss")

type ChannelConfigCache interface {
	Get(ctx context.Context) (domain.ConfigSnapshot, error)
	// Set 只在 snapshot 比缓存中的版本新时写入
	Set(ctx context.Context, snapshot domain.ConfigSnapshot) error
}
