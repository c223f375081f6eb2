package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "contentpipe"
	ServiceVersion = "1.0.0"
	MeterName      = "contentpipe"
	TracerName     = "contentpipe"
)

// OTelProviders holds the configured OpenTelemetry providers.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	logger         *slog.Logger
}

// InitializeOTel sets up tracing (stdout exporter, sampled in
// development) and metrics (Prometheus exporter) and installs the
// global providers.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironmentName(env),
	))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	providers := &OTelProviders{logger: logger}

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	sampler := sdktrace.AlwaysSample()
	if env == "production" {
		sampler = sdktrace.TraceIDRatioBased(0.1)
	}
	providers.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(providers.TracerProvider)
	providers.Tracer = providers.TracerProvider.Tracer(TracerName)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	providers.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(providers.MeterProvider)
	providers.Meter = providers.MeterProvider.Meter(MeterName)
	providers.PrometheusHTTP = promhttp.Handler()

	if err := providers.registerRuntimeMetrics(); err != nil {
		return nil, fmt.Errorf("register runtime metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("opentelemetry initialized",
		slog.String("service", ServiceName),
		slog.String("environment", env))
	return providers, nil
}

// registerRuntimeMetrics publishes goroutine and heap gauges.
func (p *OTelProviders) registerRuntimeMetrics() error {
	goroutines, err := p.Meter.Int64ObservableGauge("process.goroutines")
	if err != nil {
		return err
	}
	heap, err := p.Meter.Int64ObservableGauge("process.heap_bytes")
	if err != nil {
		return err
	}
	_, err = p.Meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heap, int64(stats.HeapAlloc))
		return nil
	}, goroutines, heap)
	return err
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
