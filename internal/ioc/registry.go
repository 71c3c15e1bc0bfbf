package ioc

import (
	"github.com/JrMarcco/jsignage/internal/pkg/registry"
	"github.com/spf13/viper"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/fx"
)

var RegistryFxOpt = fx.Provide(
	InitRegistry,
)

// InitRegistry 单机模式下返回 nil，调用方需要判空
func InitRegistry(client *clientv3.Client) registry.Registry {
	if client == nil {
		return nil
	}

	type config struct {
		Prefix string `mapstructure:"prefix"`
		TTL    int    `mapstructure:"ttl"`
	}
	cfg := &config{}
	if err := viper.UnmarshalKey("registry", cfg); err != nil {
		panic(err)
	}

	r, err := registry.NewEtcdRegistry(client, cfg.Prefix, cfg.TTL)
	if err != nil {
		panic(err)
	}
	return r
}
