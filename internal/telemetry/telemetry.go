package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecms/internal/config"
	"github.com/sitecms/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/sitecms"

// Init 初始化 OpenTelemetry：Jaeger 负责链路追踪，Prometheus 负责指标。
// 未启用时返回空的 shutdown，全局 provider 保持 no-op。
func Init(cfg config.TelemetryConfig) (func(), error) {
	log := logging.Named("telemetry")
	if !cfg.Enabled {
		log.Info("telemetry disabled")
		return func() {}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "sitecms"
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var shutdownFuncs []func(context.Context) error

	if cfg.JaegerURL != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
		if err != nil {
			return nil, fmt.Errorf("create jaeger exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		log.Info("jaeger exporter initialized", zap.String("url", cfg.JaegerURL))
	}

	if cfg.PrometheusEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		log.Info("prometheus exporter initialized")
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				log.Error("telemetry shutdown failed", zap.Error(err))
			}
		}
	}, nil
}

// Tracer returns the tracer registered on the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns the meter registered on the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// StartSpan starts a span named after the operation.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan 记录错误（若有）并结束 span。
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// Counter 懒创建一个 Int64Counter；创建失败时返回 nil，调用方需判空。
func Counter(name, description string) metric.Int64Counter {
	counter, err := Meter().Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logging.Named("telemetry").Warn("create counter failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	return counter
}
