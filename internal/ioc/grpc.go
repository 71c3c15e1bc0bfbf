package ioc

import (
	"time"

	grpcapi "github.com/JrMarcco/jsignage/internal/api/grpc"
	"github.com/JrMarcco/jsignage/internal/api/grpc/interceptor/jwt"
	"github.com/JrMarcco/jsignage/internal/pkg/authn"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var GrpcFxOpt = fx.Provide(
	InitJwtVerifier,
	grpcapi.NewSignageServer,
	health.NewServer,
	InitGrpcServer,
)

func InitJwtVerifier() *authn.Verifier {
	type config struct {
		PubPem string `mapstructure:"public"`
		Issuer string `mapstructure:"issuer"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("jwt", cfg); err != nil {
		panic(err)
	}

	// 令牌由认证服务签发，这里只需要公钥
	pubKey, err := authn.ParsePublicKey(cfg.PubPem)
	if err != nil {
		panic(err)
	}
	return authn.NewVerifier(pubKey, cfg.Issuer)
}

func InitGrpcServer(server *grpcapi.SignageServer, hs *health.Server, verifier *authn.Verifier) *grpc.Server {
	type keepaliveConfig struct {
		// Time 连接空闲多久后发送 ping
		Time time.Duration `mapstructure:"time"`
		// Timeout ping 未响应多久后断开
		Timeout           time.Duration `mapstructure:"timeout"`
		MaxConnectionIdle time.Duration `mapstructure:"max_connection_idle"`
		// MinTime 客户端 ping 的最小间隔
		MinTime time.Duration `mapstructure:"min_time"`
	}

	type config struct {
		Keepalive keepaliveConfig `mapstructure:"keepalive"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("grpc", cfg); err != nil {
		panic(err)
	}

	builder := jwt.NewBuilder(verifier, grpcapi.PublicMethods)

	grpcSvr := grpc.NewServer(
		// 拦截器按顺序执行
		grpc.ChainUnaryInterceptor(builder.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(builder.StreamServerInterceptor()),
		// 配置订阅是长连接，依赖 keepalive 发现失效连接
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:              cfg.Keepalive.Time,
			Timeout:           cfg.Keepalive.Timeout,
			MaxConnectionIdle: cfg.Keepalive.MaxConnectionIdle,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             cfg.Keepalive.MinTime,
			PermitWithoutStream: true,
		}),
	)
	grpcapi.RegisterSignageServiceServer(grpcSvr, server)
	healthpb.RegisterHealthServer(grpcSvr, hs)

	return grpcSvr
}
