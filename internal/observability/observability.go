package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls observability initialisation.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	MetricsAddress string
}

// Providers exposes configured telemetry providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce sync.Once

	analysisTracer trace.Tracer

	analysisRunDuration metric.Float64Histogram
	analysisRunTotal    metric.Int64Counter
	analysisRowsScanned metric.Int64Counter
	opportunityTotal    metric.Int64Counter
)

// Init configures tracing and metrics exporters. When cfg.Enabled is false the function is a no-op.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "searchlight"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{
			getOTLPEndpointOption(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			// Log error but don't fail startup - observability is optional
			fmt.Printf("WARN: Failed to create OTLP trace exporter (traces disabled): %v\n", err)
		} else {
			spanExporter = exp
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx) // best-effort cleanup
		return nil, fmt.Errorf("create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		analysisTracer = tracerProvider.Tracer("searchlight/analysis")
		_ = initAnalysisInstruments(meterProvider)
	})

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var allErr error
		if err := meterProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("trace provider shutdown: %w", err))
		}
		return allErr
	}

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Shutdown:       shutdown,
		Config:         cfg,
	}, nil
}

func getOTLPEndpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

func initAnalysisInstruments(meterProvider *sdkmetric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter("searchlight/analysis")

	var err error
	analysisRunDuration, err = meter.Float64Histogram(
		"searchlight.analysis.run.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to complete an opportunity analysis run"),
	)
	if err != nil {
		return err
	}

	analysisRunTotal, err = meter.Int64Counter(
		"searchlight.analysis.run.total",
		metric.WithDescription("Counts analysis run outcomes"),
	)
	if err != nil {
		return err
	}

	analysisRowsScanned, err = meter.Int64Counter(
		"searchlight.analysis.rows.total",
		metric.WithDescription("Counts metric rows scanned by analysis runs"),
	)
	if err != nil {
		return err
	}

	opportunityTotal, err = meter.Int64Counter(
		"searchlight.analysis.opportunities.total",
		metric.WithDescription("Counts opportunities produced, by type"),
	)
	return err
}

// AnalysisSpanInfo describes the attributes used when starting an analysis run span.
type AnalysisSpanInfo struct {
	RunID       string
	PropertyID  string
	WindowStart time.Time
	WindowEnd   time.Time
}

// AnalysisRunMetrics describes a finished run for metric recording.
type AnalysisRunMetrics struct {
	PropertyID string
	Status     string
	Duration   time.Duration
	Rows       int
}

// StartAnalysisSpan starts a span covering one analysis run.
func StartAnalysisSpan(ctx context.Context, info AnalysisSpanInfo) (context.Context, trace.Span) {
	t := analysisTracer
	if t == nil {
		t = otel.Tracer("searchlight/analysis")
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", info.RunID),
		attribute.String("run.property_id", info.PropertyID),
		attribute.String("run.window_start", info.WindowStart.Format("2006-01-02")),
		attribute.String("run.window_end", info.WindowEnd.Format("2006-01-02")),
	}

	return t.Start(ctx, "analysis.run", trace.WithAttributes(attrs...))
}

// RecordAnalysisRun emits run metrics when instrumentation is initialised.
func RecordAnalysisRun(ctx context.Context, metrics AnalysisRunMetrics) {
	attrs := metric.WithAttributes(
		attribute.String("run.property_id", metrics.PropertyID),
		attribute.String("run.status", metrics.Status),
	)

	if analysisRunDuration != nil {
		analysisRunDuration.Record(ctx, float64(metrics.Duration.Milliseconds()), attrs)
	}
	if analysisRunTotal != nil {
		analysisRunTotal.Add(ctx, 1, attrs)
	}
	if analysisRowsScanned != nil {
		analysisRowsScanned.Add(ctx, int64(metrics.Rows), attrs)
	}
}

// RecordOpportunities emits per-type opportunity counts for one run.
func RecordOpportunities(ctx context.Context, propertyID string, countsByType map[string]int) {
	if opportunityTotal == nil {
		return
	}
	for opportunityType, count := range countsByType {
		opportunityTotal.Add(ctx, int64(count),
			metric.WithAttributes(
				attribute.String("run.property_id", propertyID),
				attribute.String("opportunity.type", opportunityType),
			))
	}
}
