package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	evaluations      metric.Int64Counter
	evaluationFlags  metric.Int64Counter
	snapshotRefresh  metric.Int64Counter
	snapshotFailures metric.Int64Counter
	telemetryDropped metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	evalDuration     metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "beacon"
	}
	meter := provider.Meter(name)

	evaluations, err := meter.Int64Counter("beacon_evaluations_total")
	if err != nil {
		return nil, err
	}
	evaluationFlags, err := meter.Int64Counter("beacon_evaluation_flags_total")
	if err != nil {
		return nil, err
	}
	snapshotRefresh, err := meter.Int64Counter("beacon_snapshot_refresh_total")
	if err != nil {
		return nil, err
	}
	snapshotFailures, err := meter.Int64Counter("beacon_snapshot_refresh_failures_total")
	if err != nil {
		return nil, err
	}
	telemetryDropped, err := meter.Int64Counter("beacon_telemetry_dropped_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("beacon_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("beacon_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	evalDuration, err := meter.Float64Histogram("beacon_evaluation_duration_ms")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		evaluations:      evaluations,
		evaluationFlags:  evaluationFlags,
		snapshotRefresh:  snapshotRefresh,
		snapshotFailures: snapshotFailures,
		telemetryDropped: telemetryDropped,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
		evalDuration:     evalDuration,
	}, nil
}

// RecordEvaluation counts one evaluate call and its duration.
func (m *Metrics) RecordEvaluation(ctx context.Context, environment string, flagCount int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("environment", strings.TrimSpace(environment)))
	m.evaluations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.evaluationFlags.Add(ctx, int64(flagCount), metric.WithAttributes(attrs...))
	m.evalDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0, metric.WithAttributes(attrs...))
}

// RecordSnapshotRefresh counts a snapshot rebuild attempt.
func (m *Metrics) RecordSnapshotRefresh(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.snapshotRefresh.Add(ctx, 1)
	if !ok {
		m.snapshotFailures.Add(ctx, 1)
	}
}

// RecordTelemetryDropped counts evaluation events dropped on a full buffer.
func (m *Metrics) RecordTelemetryDropped(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.telemetryDropped.Add(ctx, count)
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, environment, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("environment", strings.TrimSpace(environment)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, environment, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("environment", strings.TrimSpace(environment)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"environment": {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
	"route":       {},
	"method":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
