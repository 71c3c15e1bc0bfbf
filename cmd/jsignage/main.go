package main

import (
	"strings"

	"github.com/JrMarcco/jsignage/internal/ioc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	initViper()

	fx.New(
		// 初始化 zap.Logger
		ioc.LoggerFxOpt,

		// 初始化链路追踪
		ioc.TelemetryFxOpt,

		// 初始化数据库与 redis
		ioc.DBFxOpt,
		ioc.RedisFxOpt,

		// 初始化 etcd，单机模式下为 nil
		ioc.EtcdFxOpt,

		// 初始化 Repo
		ioc.RepoFxOpt,

		// 初始化 Service
		ioc.ServiceFxOpt,

		// 初始化注册中心
		ioc.RegistryFxOpt,
		// 初始化 grpc.Server
		ioc.GrpcFxOpt,
		// 初始化 http.Server
		ioc.WebFxOpt,

		// 初始化 ioc.App
		ioc.AppFxOpt,

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),

		// 实际运行方法，即调用 ioc.AppLifecycle 方法
		ioc.AppFxInvoke,
		// 确保日志缓冲区被刷新
		ioc.LoggerFxInvoke,
	).Run()
}

// initViper 初始化 viper，环境变量以 JSIGNAGE_ 为前缀，key 中的 . 替换为 _
func initViper() {
	configFile := pflag.String("config", "etc/config.yaml", "配置文件路径")
	pflag.Parse()

	viper.SetConfigFile(*configFile)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("JSIGNAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
}
