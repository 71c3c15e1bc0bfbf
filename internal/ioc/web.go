package ioc

import (
	"net/http"
	"time"

	"github.com/JrMarcco/jsignage/internal/api/realtime"
	"github.com/JrMarcco/jsignage/internal/api/web"
	"github.com/JrMarcco/jsignage/internal/api/web/handler"
	"github.com/JrMarcco/jsignage/internal/api/web/middleware"
	"github.com/JrMarcco/jsignage/internal/pkg/authn"
	"github.com/JrMarcco/jsignage/internal/pkg/registry"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var WebFxOpt = fx.Provide(
	// handlers
	handler.NewConfigHandler,
	handler.NewOrderHandler,
	InitAdminHandler,

	// middlewares
	InitAuthBuilder,
	InitRateLimiter,

	// realtime feed
	InitRealtimeFeed,

	InitHttpServer,
)

func InitAdminHandler(broadcaster broadcast.Broadcaster, rgst registry.Registry) *handler.AdminHandler {
	return handler.NewAdminHandler(broadcaster, rgst, viper.GetString("app.name"))
}

func InitAuthBuilder(verifier *authn.Verifier, logger *zap.Logger) *middleware.AuthBuilder {
	return middleware.NewAuthBuilder(verifier, logger)
}

func InitRateLimiter() *middleware.RateLimiter {
	cfg := middleware.RateLimitConfig{}
	if err := viper.UnmarshalKey("rate_limit", &cfg); err != nil {
		panic(err)
	}
	return middleware.NewRateLimiter(cfg)
}

func InitRealtimeFeed(broadcaster broadcast.Broadcaster, logger *zap.Logger) *realtime.Feed {
	cfg := realtime.Config{}
	if err := viper.UnmarshalKey("realtime", &cfg); err != nil {
		panic(err)
	}
	return realtime.NewFeed(broadcaster, cfg, logger)
}

type HttpServerParams struct {
	fx.In

	ConfigHandler *handler.ConfigHandler
	OrderHandler  *handler.OrderHandler
	AdminHandler  *handler.AdminHandler

	Auth        *middleware.AuthBuilder
	RateLimiter *middleware.RateLimiter
	Feed        *realtime.Feed

	TracerProvider *sdktrace.TracerProvider
	Logger         *zap.Logger
}

func InitHttpServer(p HttpServerParams) *http.Server {
	type config struct {
		Addr              string        `mapstructure:"addr"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("http", cfg); err != nil {
		panic(err)
	}
	corsCfg := middleware.CorsConfig{}
	if err := viper.UnmarshalKey("cors", &corsCfg); err != nil {
		panic(err)
	}
	if viper.GetString("profile.env") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	web.NewRouter(
		engine,
		web.Handlers{
			Config: p.ConfigHandler,
			Order:  p.OrderHandler,
			Admin:  p.AdminHandler,
			SockJS: p.Feed.SockJSHandler(web.SockJSPrefix),
			Ws:     p.Feed.WsHandler(),
		},
		web.Middlewares{
			Auth:        p.Auth,
			RateLimiter: p.RateLimiter,
			Cors:        corsCfg,
		},
		p.Logger,
	)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(engine, "jsignage.http", otelhttp.WithTracerProvider(p.TracerProvider)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
