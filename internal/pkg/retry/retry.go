package retry

import (
	"fmt"
	"time"

	"github.com/JrMarcco/easy-kit/retry"
	"github.com/JrMarcco/jsignage/internal/errs"
)

const (
	TypeFixedInterval      = "fixed_interval"
	TypeExponentialBackoff = "exponential_backoff"
)

type Config struct {
	Type               string                    `json:"type" mapstructure:"type"`
	FixedInterval      *FixedIntervalConfig      `json:"fixed_interval" mapstructure:"fixed_interval"`
	ExponentialBackoff *ExponentialBackoffConfig `json:"exponential_backoff" mapstructure:"exponential_backoff"`
}

type ExponentialBackoffConfig struct {
	InitInterval time.Duration `json:"init_interval" mapstructure:"init_interval"`
	MaxInterval  time.Duration `json:"max_interval" mapstructure:"max_interval"`
	MaxTimes     int32         `json:"max_times" mapstructure:"max_times"`
}

type FixedIntervalConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	MaxTimes int32         `json:"max_times" mapstructure:"max_times"`
}

func NewRetryStrategy(cfg Config) (retry.Strategy, error) {
	switch cfg.Type {
	case TypeFixedInterval:
		if cfg.FixedInterval == nil {
			return nil, fmt.Errorf("%w: missing fixed interval retry config", errs.ErrInvalidParam)
		}
		return retry.NewFixedIntervalStrategy(cfg.FixedInterval.Interval, cfg.FixedInterval.MaxTimes)
	case TypeExponentialBackoff:
		if cfg.ExponentialBackoff == nil {
			return nil, fmt.Errorf("%w: missing exponential backoff retry config", errs.ErrInvalidParam)
		}
		return retry.NewExponentialBackoffStrategy(
			cfg.ExponentialBackoff.InitInterval,
			cfg.ExponentialBackoff.MaxInterval,
			cfg.ExponentialBackoff.MaxTimes,
		)
	default:
		return nil, fmt.Errorf("%w: unknown retry strategy type: %s", errs.ErrInvalidParam, cfg.Type)
	}
}
