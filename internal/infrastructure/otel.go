package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ServiceName    = "wdi-pulse"
	ServiceVersion = "1.0.0"
	MeterName      = "wdicli"
)

// OTelProviders holds the metrics pipeline: an OpenTelemetry meter backed
// by a Prometheus exporter, plus the HTTP handler that serves /metrics.
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Metrics        *Metrics
	logger         *slog.Logger
}

// Metrics holds the application instruments.
type Metrics struct {
	DatasetsIngested    metric.Int64Counter
	AnalysesTotal       metric.Int64Counter
	AnalysisDuration    metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// InitializeOTel sets up the metrics pipeline. Call once at startup.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)
	meter := mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))

	metrics, err := createMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	logger.Info("metrics initialized", slog.String("exporter", "prometheus"))

	return &OTelProviders{
		MeterProvider:  mp,
		Meter:          meter,
		PrometheusHTTP: promhttp.Handler(),
		Metrics:        metrics,
		logger:         logger,
	}, nil
}

func createMetrics(meter metric.Meter) (*Metrics, error) {
	datasetsIngested, err := meter.Int64Counter(
		"datasets_ingested_total",
		metric.WithDescription("Total number of datasets ingested"),
	)
	if err != nil {
		return nil, err
	}

	analysesTotal, err := meter.Int64Counter(
		"analyses_total",
		metric.WithDescription("Total number of analysis computations"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("Analysis computation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		DatasetsIngested:    datasetsIngested,
		AnalysesTotal:       analysesTotal,
		AnalysisDuration:    analysisDuration,
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p.MeterProvider == nil {
		return nil
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	p.logger.InfoContext(ctx, "metrics shutdown complete")
	return nil
}
