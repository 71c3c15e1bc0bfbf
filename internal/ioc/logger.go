package ioc

import (
	"context"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var LoggerFxOpt = fx.Provide(
	InitLogger,
)

var LoggerFxInvoke = fx.Invoke(
	LoggerLifecycle,
)

func InitLogger() *zap.Logger {
	type config struct {
		Env   string `mapstructure:"env"`
		Level string `mapstructure:"log_level"`
	}

	cfg := &config{}

	err := viper.UnmarshalKey("profile", cfg)
	if err != nil {
		panic(err)
	}

	var zCfg zap.Config
	switch cfg.Env {
	case "prod":
		zCfg = zap.NewProductionConfig()
	default:
		zCfg = zap.NewDevelopmentConfig()
	}

	// 未配置时使用环境默认级别
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			panic(err)
		}
		zCfg.Level = level
	}

	zLogger, err := zCfg.Build()
	if err != nil {
		panic(err)
	}
	return zLogger
}

func LoggerLifecycle(lc fx.Lifecycle, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
}
