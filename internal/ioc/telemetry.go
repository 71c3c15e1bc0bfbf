package ioc

import (
	"context"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TelemetryFxOpt = fx.Provide(
	InitTracerProvider,
)

// InitTracerProvider 未配置 otlp_endpoint 时不导出任何 span
func InitTracerProvider(lc fx.Lifecycle, logger *zap.Logger) *sdktrace.TracerProvider {
	type config struct {
		OtlpEndpoint string  `mapstructure:"otlp_endpoint"`
		Insecure     bool    `mapstructure:"insecure"`
		SampleRatio  float64 `mapstructure:"sample_ratio"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("telemetry", cfg); err != nil {
		panic(err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(viper.GetString("app.name"))),
	)
	if err != nil {
		panic(err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.SampleRatio > 0 {
		opts = append(opts, sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))))
	}

	if cfg.OtlpEndpoint != "" {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OtlpEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(context.Background(), exporterOpts...)
		if err != nil {
			panic(err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	} else {
		logger.Info("[jsignage] telemetry exporter disabled")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}
