package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/goto/salt/log"
	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/contrib/samplers/probability/consistent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"google.golang.org/grpc/encoding/gzip"
)

type OpenTelemetryConfig struct {
	Enabled                bool              `yaml:"enabled" mapstructure:"enabled" default:"false"`
	CollectorAddr          string            `yaml:"collector_addr" mapstructure:"collector_addr" default:"localhost:4317"`
	Insecure               bool              `yaml:"insecure" mapstructure:"insecure" default:"true"`
	Headers                map[string]string `yaml:"headers" mapstructure:"headers"`
	ExportTimeout          time.Duration     `yaml:"export_timeout" mapstructure:"export_timeout" default:"10s"`
	PeriodicReadInterval   time.Duration     `yaml:"periodic_read_interval" mapstructure:"periodic_read_interval" default:"1s"`
	TraceSampleProbability float64           `yaml:"trace_sample_probability" mapstructure:"trace_sample_probability" default:"1"`
	// RuntimeMetrics adds the host and Go runtime instruments.
	RuntimeMetrics bool `yaml:"runtime_metrics" mapstructure:"runtime_metrics" default:"true"`
}

func initOTLP(ctx context.Context, cfg Config, logger log.Logger, stack *shutdownStack) error {
	otelCfg := cfg.OpenTelemetry
	if !otelCfg.Enabled {
		logger.Info("OpenTelemetry monitoring is disabled.")
		return nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return err
	}

	meterProvider, err := newMeterProvider(ctx, res, otelCfg)
	if err != nil {
		return err
	}
	otel.SetMeterProvider(meterProvider)
	stack.push(func() { shutdownProvider(logger, "metric", meterProvider.Shutdown) })

	tracerProvider, err := newTracerProvider(ctx, res, otelCfg)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	stack.push(func() { shutdownProvider(logger, "trace", tracerProvider.Shutdown) })

	if otelCfg.RuntimeMetrics {
		if err := host.Start(); err != nil {
			return fmt.Errorf("start host instrumentation: %w", err)
		}
		if err := runtime.Start(); err != nil {
			return fmt.Errorf("start runtime instrumentation: %w", err)
		}
	}

	logger.Info("OpenTelemetry monitoring is enabled",
		"collector", otelCfg.CollectorAddr,
		"sample_probability", otelCfg.TraceSampleProbability,
	)
	return nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(cfg.AppVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, cfg OpenTelemetryConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorAddr),
		otlpmetricgrpc.WithCompressor(gzip.Name),
		otlpmetricgrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.PeriodicReadInterval))
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)), nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, cfg OpenTelemetryConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.CollectorAddr),
		otlptracegrpc.WithCompressor(gzip.Name),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(consistent.ProbabilityBased(cfg.TraceSampleProbability)),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	), nil
}

func shutdownProvider(logger log.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logger.Error("otlp provider failed to shutdown", "provider", name, "err", err)
	}
}
