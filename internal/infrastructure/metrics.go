package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	ServiceName    = "trading-filter"
	ServiceVersion = "1.2.0"
	MeterName      = "trading-filter"
)

// MetricsProvider bundles the meter provider with the Prometheus scrape handler.
type MetricsProvider struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	logger         *slog.Logger
}

// InitializeMetrics sets up the OpenTelemetry meter provider backed by the
// Prometheus exporter and registers it globally.
func InitializeMetrics(logger *slog.Logger) (*MetricsProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	logger.Info("metrics initialized", slog.String("exporter", "prometheus"))

	return &MetricsProvider{
		MeterProvider:  mp,
		Meter:          mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)),
		PrometheusHTTP: promhttp.Handler(),
		logger:         logger,
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	if p.MeterProvider == nil {
		return nil
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}

// BusinessMetrics holds the application-specific instruments.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	AnalysesTotal    metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	CacheHits        metric.Int64Counter
	CacheMisses      metric.Int64Counter

	BatchesTotal      metric.Int64Counter
	BatchSymbolsTotal metric.Int64Counter

	SnapshotIngestsTotal metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics on the meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
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

	analysesTotal, err := meter.Int64Counter(
		"analysis_runs_total",
		metric.WithDescription("Total number of analyzer process invocations"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram(
		"analysis_run_duration_seconds",
		metric.WithDescription("Analyzer process duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"result_cache_hits_total",
		metric.WithDescription("Total number of result cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"result_cache_misses_total",
		metric.WithDescription("Total number of result cache misses"),
	)
	if err != nil {
		return nil, err
	}

	batchesTotal, err := meter.Int64Counter(
		"analysis_batches_total",
		metric.WithDescription("Total number of batch analysis runs"),
	)
	if err != nil {
		return nil, err
	}

	batchSymbolsTotal, err := meter.Int64Counter(
		"analysis_batch_symbols_total",
		metric.WithDescription("Total number of symbols processed in batches"),
	)
	if err != nil {
		return nil, err
	}

	snapshotIngestsTotal, err := meter.Int64Counter(
		"snapshot_ingests_total",
		metric.WithDescription("Total number of snapshot ingestions"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		HTTPRequestsTotal:    httpRequestsTotal,
		HTTPRequestDuration:  httpRequestDuration,
		AnalysesTotal:        analysesTotal,
		AnalysisDuration:     analysisDuration,
		CacheHits:            cacheHits,
		CacheMisses:          cacheMisses,
		BatchesTotal:         batchesTotal,
		BatchSymbolsTotal:    batchSymbolsTotal,
		SnapshotIngestsTotal: snapshotIngestsTotal,
	}, nil
}

// RecordIngest records one snapshot ingestion attempt.
func (m *BusinessMetrics) RecordIngest(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.SnapshotIngestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordCacheLookup records a cache hit or miss for the named cache.
func (m *BusinessMetrics) RecordCacheLookup(ctx context.Context, cacheName string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cache", cacheName))
	if hit {
		m.CacheHits.Add(ctx, 1, attrs)
	} else {
		m.CacheMisses.Add(ctx, 1, attrs)
	}
}

// RecordAnalysis records a completed analyzer invocation.
func (m *BusinessMetrics) RecordAnalysis(ctx context.Context, symbol string, seconds float64, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("status", status),
	)
	m.AnalysesTotal.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, seconds, attrs)
}
