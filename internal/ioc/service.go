package ioc

import (
	"context"
	"strconv"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/pkg/etcdwatch"
	"github.com/JrMarcco/jsignage/internal/pkg/idempotent"
	"github.com/JrMarcco/jsignage/internal/pkg/lock"
	"github.com/JrMarcco/jsignage/internal/pkg/semaphore"
	"github.com/JrMarcco/jsignage/internal/pkg/sharding"
	"github.com/JrMarcco/jsignage/internal/repository"
	"github.com/JrMarcco/jsignage/internal/service/birthday"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/JrMarcco/jsignage/internal/service/channelconf"
	"github.com/JrMarcco/jsignage/internal/service/pricing"
	"github.com/JrMarcco/jsignage/internal/service/schedule"
	"github.com/JrMarcco/jsignage/internal/service/submission"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ServiceFxOpt = fx.Options(
	fx.Provide(
		// config broadcaster
		fx.Annotate(
			InitBroadcaster,
			fx.As(fx.Self(), new(broadcast.Broadcaster), new(channelconf.Publisher)),
		),
		// channel config store
		fx.Annotate(
			InitChannelConfigStore,
			fx.As(new(channelconf.Store)),
		),
		// channel config updater
		InitChannelConfigUpdater,

		// birthday evaluator
		fx.Annotate(
			InitBirthdayEvaluator,
			fx.As(new(birthday.Evaluator)),
		),
		// pricer
		fx.Annotate(
			InitRateTable,
			fx.As(new(pricing.Pricer)),
		),
		// queue scheduler
		InitLocker,
		fx.Annotate(
			InitQueueScheduler,
			fx.As(new(schedule.QueueScheduler)),
		),

		// submission service
		fx.Annotate(
			InitIdempotentStrategy,
			fx.As(new(idempotent.Strategy)),
		),
		fx.Annotate(
			submission.NewDefaultService,
			fx.As(new(submission.Service)),
		),

		// etcd 后台同步任务
		fx.Annotate(
			InitClusterRunners,
			fx.ResultTags(`group:"runners,flatten"`),
		),
	),
)

func InitBroadcaster(logger *zap.Logger) *broadcast.DefaultBroadcaster {
	type config struct {
		Shards           int           `mapstructure:"shards"`
		MaxSubscribers   int           `mapstructure:"max_subscribers"`
		ReapInterval     time.Duration `mapstructure:"reap_interval"`
		StallWindow      int           `mapstructure:"stall_window"`
		StallConsecutive int           `mapstructure:"stall_consecutive"`
		StallRate        float64       `mapstructure:"stall_rate"`
		LatencyWindow    int           `mapstructure:"latency_window"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("broadcast", cfg); err != nil {
		panic(err)
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}

	return broadcast.NewDefaultBroadcaster(
		sharding.NewHashStrategy(cfg.Shards),
		semaphore.NewMaxCntSemaphore(cfg.MaxSubscribers),
		broadcast.Config{
			ReapInterval:     cfg.ReapInterval,
			StallWindow:      cfg.StallWindow,
			StallConsecutive: cfg.StallConsecutive,
			StallRate:        cfg.StallRate,
			LatencyWindow:    cfg.LatencyWindow,
		},
		logger,
	)
}

func InitChannelConfigStore(
	repo repository.ChannelConfigRepo, publisher channelconf.Publisher, logger *zap.Logger,
) *channelconf.DefaultStore {
	type defaultsConfig struct {
		SystemEnabled   bool `mapstructure:"system_enabled"`
		ImageEnabled    bool `mapstructure:"image_enabled"`
		TextEnabled     bool `mapstructure:"text_enabled"`
		BirthdayEnabled bool `mapstructure:"birthday_enabled"`
	}

	type config struct {
		Defaults    defaultsConfig `mapstructure:"defaults"`
		HistorySize int            `mapstructure:"history_size"`
		LoadTimeout time.Duration  `mapstructure:"load_timeout"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("channel", cfg); err != nil {
		panic(err)
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LoadTimeout)
	defer cancel()

	// 没有任何持久化快照时以该配置作为版本 0
	defaults := domain.ChannelConfig{
		SystemEnabled:   cfg.Defaults.SystemEnabled,
		ImageEnabled:    cfg.Defaults.ImageEnabled,
		TextEnabled:     cfg.Defaults.TextEnabled,
		BirthdayEnabled: cfg.Defaults.BirthdayEnabled,
	}

	store, err := channelconf.NewDefaultStore(ctx, repo, publisher, defaults, cfg.HistorySize, nil, logger)
	if err != nil {
		panic(err)
	}
	return store
}

// InitChannelConfigUpdater 集群模式下配置经由 etcd 分发
func InitChannelConfigUpdater(client *clientv3.Client, store channelconf.Store) channelconf.Updater {
	if client == nil {
		return channelconf.NewLocalUpdater(store)
	}
	return channelconf.NewEtcdUpdater(client, channelConfigEtcdKey(), store)
}

func channelConfigEtcdKey() string {
	key := viper.GetString("channel.etcd_key")
	if key == "" {
		panic("[jsignage] channel.etcd_key is required in cluster mode")
	}
	return key
}

// InitClusterRunners 监听 etcd 中的渠道配置与订阅上限，单机模式下没有后台任务
func InitClusterRunners(
	client *clientv3.Client,
	store channelconf.Store,
	broadcaster *broadcast.DefaultBroadcaster,
	logger *zap.Logger,
) []Runner {
	if client == nil {
		return nil
	}

	runners := []Runner{
		channelconf.NewEtcdWatcher(client, channelConfigEtcdKey(), store, newWatchRetryStrategy(), logger),
	}

	// 在线调整订阅上限
	if key := viper.GetString("broadcast.max_subscribers_key"); key != "" {
		runners = append(runners, etcdwatch.NewWatcher(client, key, func(_ context.Context, kv *mvccpb.KeyValue) {
			maxCnt, err := strconv.Atoi(string(kv.Value))
			if err != nil {
				logger.Error("[jsignage] invalid max subscribers in etcd", zap.Error(err), zap.ByteString("value", kv.Value))
				return
			}
			broadcaster.UpdateMaxSubscribers(maxCnt)
		}, newWatchRetryStrategy(), logger))
	}
	return runners
}

func InitBirthdayEvaluator() *birthday.DefaultEvaluator {
	loc, err := time.LoadLocation(viper.GetString("schedule.timezone"))
	if err != nil {
		panic(err)
	}
	return birthday.NewDefaultEvaluator(loc, nil)
}

func InitRateTable() *pricing.RateTable {
	type rateConfig struct {
		PerMinute string `mapstructure:"per_minute"`
		Minimum   string `mapstructure:"minimum"`
	}

	cfgs := make(map[string]rateConfig)
	if err := viper.UnmarshalKey("pricing", &cfgs); err != nil {
		panic(err)
	}

	rates := make(map[domain.Channel]pricing.Rate, len(cfgs))
	for name, cfg := range cfgs {
		channel, err := domain.ParseChannel(name)
		if err != nil {
			panic(err)
		}
		rate, err := pricing.ParseRate(cfg.PerMinute, cfg.Minimum)
		if err != nil {
			panic(err)
		}
		rates[channel] = rate
	}
	return pricing.NewRateTable(rates)
}

// InitLocker 单机模式使用进程内锁，集群模式使用 etcd 锁保证队列号全局有序
func InitLocker(session *concurrency.Session) lock.Locker {
	if session == nil {
		return lock.NewLocalLocker()
	}

	key := viper.GetString("schedule.lock_key")
	if key == "" {
		panic("[jsignage] schedule.lock_key is required in cluster mode")
	}
	return lock.NewEtcdLocker(session, key)
}

func InitQueueScheduler(
	locker lock.Locker,
	orderRepo repository.OrderRepo,
	evaluator birthday.Evaluator,
	pricer pricing.Pricer,
	logger *zap.Logger,
) *schedule.DefaultQueueScheduler {
	return schedule.NewDefaultQueueScheduler(
		locker,
		orderRepo,
		evaluator,
		pricer,
		viper.GetInt("schedule.max_duration"),
		nil,
		logger,
	)
}

func InitIdempotentStrategy(client redis.Cmdable) *idempotent.RedisStrategy {
	type config struct {
		Prefix  string        `mapstructure:"prefix"`
		Expires time.Duration `mapstructure:"expires"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("idempotent", cfg); err != nil {
		panic(err)
	}
	return idempotent.NewRedisStrategy(client, cfg.Prefix, cfg.Expires)
}
