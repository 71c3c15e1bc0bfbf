package ioc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	grpcapi "github.com/JrMarcco/jsignage/internal/api/grpc"
	"github.com/JrMarcco/jsignage/internal/pkg/registry"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var AppFxOpt = fx.Provide(
	InitApp,
)

var AppFxInvoke = fx.Invoke(
	AppLifecycle,
)

// Runner 随应用启动的后台任务，应用停止时 ctx 被取消
type Runner interface {
	Run(ctx context.Context) error
}

type App struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	httpServer   *http.Server
	broadcaster  *broadcast.DefaultBroadcaster
	runners      []Runner

	timeout  time.Duration
	registry registry.Registry
	si       registry.ServiceInstance

	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

type AppParams struct {
	fx.In

	GrpcServer   *grpc.Server
	HealthServer *health.Server
	HttpServer   *http.Server
	Broadcaster  *broadcast.DefaultBroadcaster
	Runners      []Runner `group:"runners"`
	// 单机模式下为 nil
	Registry registry.Registry
	Logger   *zap.Logger
}

func InitApp(p AppParams) *App {
	type config struct {
		Name     string `mapstructure:"name"`
		GrpcAddr string `mapstructure:"grpc_addr"`
		Group    string `mapstructure:"group"`
		Timeout  int    `mapstructure:"timeout"`
	}
	cfg := &config{}
	if err := viper.UnmarshalKey("app", cfg); err != nil {
		panic(err)
	}

	si := registry.ServiceInstance{
		Name:     cfg.Name,
		GrpcAddr: cfg.GrpcAddr,
		HttpAddr: p.HttpServer.Addr,
		Group:    cfg.Group,
	}

	return &App{
		grpcServer:   p.GrpcServer,
		healthServer: p.HealthServer,
		httpServer:   p.HttpServer,
		broadcaster:  p.Broadcaster,
		runners:      p.Runners,
		timeout:      time.Duration(cfg.Timeout) * time.Millisecond,
		registry:     p.Registry,
		si:           si,
		logger:       p.Logger,
	}
}

func (app *App) start() error {
	si := app.si

	ln, err := net.Listen("tcp", si.GrpcAddr)
	if err != nil {
		return err
	}
	httpLn, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = ln.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	// 启动心跳回收
	if err = app.broadcaster.Start(ctx); err != nil {
		return err
	}

	for _, r := range app.runners {
		app.wg.Add(1)
		go func(r Runner) {
			defer app.wg.Done()
			if runErr := r.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				// 配置监听放弃后本节点不再对外服务
				app.logger.Error("[jsignage] background runner exited", zap.Error(runErr))
				app.healthServer.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
			}
		}(r)
	}

	// 启动 gRPC 服务器
	go func() {
		if serveErr := app.grpcServer.Serve(ln); serveErr != nil {
			app.logger.Error("[jsignage] grpc server exited", zap.Error(serveErr))
		}
	}()

	// 启动 http 服务器
	go func() {
		if serveErr := app.httpServer.Serve(httpLn); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			app.logger.Error("[jsignage] http server exited", zap.Error(serveErr))
		}
	}()

	app.healthServer.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	app.logger.Info(
		"[jsignage] server started",
		zap.String("grpc_addr", si.GrpcAddr),
		zap.String("http_addr", app.httpServer.Addr),
	)

	// 注册服务到注册中心
	if app.registry != nil {
		si.StartedAt = time.Now().UnixMilli()
		app.si = si

		registerCtx, cancel := context.WithTimeout(context.Background(), app.timeout)
		regErr := app.registry.Register(registerCtx, si)
		cancel()

		if regErr != nil {
			return regErr
		}
	}
	return nil
}

func (app *App) stop(ctx context.Context) {
	// 从注册中心注销服务
	if app.registry != nil {
		unregisterCtx, cancel := context.WithTimeout(context.Background(), app.timeout)
		if err := app.registry.Unregister(unregisterCtx, app.si); err != nil {
			// 记录错误但不返回，确保服务器能够正常关闭
			app.logger.Error("[jsignage] unregister service failed", zap.Error(err))
		}
		cancel()

		if err := app.registry.Close(); err != nil {
			app.logger.Error("[jsignage] close registry failed", zap.Error(err))
		}
	}

	app.healthServer.Shutdown()

	// 先关闭广播，所有推送连接随订阅结束而断开
	_ = app.broadcaster.Close()
	if app.cancel != nil {
		app.cancel()
	}
	app.wg.Wait()

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Error("[jsignage] shutdown http server failed", zap.Error(err))
	}

	// 优雅退出
	app.grpcServer.GracefulStop()
}

func AppLifecycle(lc fx.Lifecycle, app *App) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return app.start()
		},
		OnStop: func(ctx context.Context) error {
			app.stop(ctx)
			return nil
		},
	})
}
