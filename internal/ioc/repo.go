package ioc

import (
	"time"

	"github.com/JrMarcco/jsignage/internal/repository"
	"github.com/JrMarcco/jsignage/internal/repository/cache"
	"github.com/JrMarcco/jsignage/internal/repository/cache/local"
	"github.com/JrMarcco/jsignage/internal/repository/cache/redis"
	"github.com/JrMarcco/jsignage/internal/repository/dao"
	gcache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var RepoFxOpt = fx.Options(
	// cache
	fx.Provide(
		fx.Annotate(
			InitChannelConfigRedisCache,
			fx.As(new(cache.ChannelConfigCache)),
		),
		fx.Annotate(
			InitOrderLocalCache,
			fx.As(new(cache.OrderCache)),
		),
	),

	// dao
	fx.Provide(
		// channel config dao
		fx.Annotate(
			dao.NewDefaultChannelConfigDAO,
			fx.As(new(dao.ChannelConfigDAO)),
		),
		// order dao
		fx.Annotate(
			dao.NewDefaultOrderDAO,
			fx.As(new(dao.OrderDAO)),
		),
	),

	// repository
	fx.Provide(
		// channel config repository
		fx.Annotate(
			repository.NewDefaultChannelConfigRepo,
			fx.As(new(repository.ChannelConfigRepo)),
		),
		// order repository
		fx.Annotate(
			repository.NewDefaultOrderRepo,
			fx.As(new(repository.OrderRepo)),
		),
	),
)

func InitChannelConfigRedisCache(rc goredis.Cmdable) *redis.ChannelConfigRedisCache {
	type config struct {
		Expires time.Duration `mapstructure:"expires"`
	}
	cfg := &config{}
	if err := viper.UnmarshalKey("cache.channel_config", cfg); err != nil {
		panic(err)
	}
	return redis.NewChannelConfigRedisCache(rc, cfg.Expires)
}

func InitOrderLocalCache() *local.OrderLocalCache {
	type config struct {
		Expires         time.Duration `mapstructure:"expires"`
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	}
	cfg := &config{}
	if err := viper.UnmarshalKey("cache.order", cfg); err != nil {
		panic(err)
	}
	return local.NewOrderLocalCache(gcache.New(cfg.Expires, cfg.CleanupInterval))
}
