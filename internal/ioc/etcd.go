package ioc

import (
	"context"
	"time"

	easyretry "github.com/JrMarcco/easy-kit/retry"
	"github.com/JrMarcco/jsignage/internal/pkg/retry"
	"github.com/spf13/viper"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var EtcdFxOpt = fx.Provide(
	InitEtcdClient,
	InitEtcdSession,
)

// ClusterConfig 集群模式配置，未开启时各组件使用单机实现
type ClusterConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// SessionTTL etcd 会话租约时长（秒），用于集群互斥锁
	SessionTTL int `mapstructure:"session_ttl"`
	// WatchRetry etcd 监听中断后的重试策略
	WatchRetry retry.Config `mapstructure:"watch_retry"`
}

func loadClusterConfig() ClusterConfig {
	cfg := ClusterConfig{}
	if err := viper.UnmarshalKey("cluster", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

// newWatchRetryStrategy 未配置时使用指数退避
func newWatchRetryStrategy() easyretry.Strategy {
	cfg := loadClusterConfig().WatchRetry
	if cfg.Type == "" {
		cfg = retry.Config{
			Type: retry.TypeExponentialBackoff,
			ExponentialBackoff: &retry.ExponentialBackoffConfig{
				InitInterval: 500 * time.Millisecond,
				MaxInterval:  30 * time.Second,
				MaxTimes:     20,
			},
		}
	}

	strategy, err := retry.NewRetryStrategy(cfg)
	if err != nil {
		panic(err)
	}
	return strategy
}

// InitEtcdClient 单机模式下返回 nil
func InitEtcdClient(lc fx.Lifecycle, logger *zap.Logger) *clientv3.Client {
	if !loadClusterConfig().Enabled {
		logger.Info("[jsignage] cluster mode disabled, running standalone")
		return nil
	}

	type config struct {
		Username    string        `mapstructure:"username"`
		Password    string        `mapstructure:"password"`
		Endpoints   []string      `mapstructure:"endpoints"`
		DialTimeout time.Duration `mapstructure:"dial_timeout"`
	}
	cfg := &config{}
	if err := viper.UnmarshalKey("etcd", cfg); err != nil {
		panic(err)
	}

	client, err := clientv3.New(clientv3.Config{
		Username:    cfg.Username,
		Password:    cfg.Password,
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		panic(err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// InitEtcdSession 集群锁使用的会话，client 为 nil 时返回 nil
func InitEtcdSession(lc fx.Lifecycle, client *clientv3.Client) *concurrency.Session {
	if client == nil {
		return nil
	}

	opts := make([]concurrency.SessionOption, 0, 1)
	if ttl := loadClusterConfig().SessionTTL; ttl > 0 {
		opts = append(opts, concurrency.WithTTL(ttl))
	}
	session, err := concurrency.NewSession(client, opts...)
	if err != nil {
		panic(err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return session.Close()
		},
	})
	return session
}
