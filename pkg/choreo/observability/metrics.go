package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordConsume records a consumed message with its handler duration
	// and error status.
	RecordConsume(ctx context.Context, queue, eventType string, duration time.Duration, err error)

	// RecordPublish records an outbound publish attempt.
	RecordPublish(ctx context.Context, eventType string, err error)

	// RecordOutboxPending records the current outbox backlog depth.
	RecordOutboxPending(ctx context.Context, pending int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	consumed       metric.Int64Counter
	handlerLatency metric.Float64Histogram
	handlerErrors  metric.Int64Counter
	published      metric.Int64Counter
	publishErrors  metric.Int64Counter
	outboxPending  metric.Int64Gauge
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("choreo")

	consumed, err := meter.Int64Counter("choreo.events.consumed",
		metric.WithDescription("Number of messages consumed"),
	)
	if err != nil {
		return nil, err
	}

	handlerLatency, err := meter.Float64Histogram("choreo.handler.latency_ms",
		metric.WithDescription("Event handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("choreo.handler.errors",
		metric.WithDescription("Number of event handler failures"),
	)
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter("choreo.events.published",
		metric.WithDescription("Number of events published"),
	)
	if err != nil {
		return nil, err
	}

	publishErrors, err := meter.Int64Counter("choreo.publish.errors",
		metric.WithDescription("Number of publish failures"),
	)
	if err != nil {
		return nil, err
	}

	outboxPending, err := meter.Int64Gauge("choreo.outbox.pending",
		metric.WithDescription("Undispatched events in the outbox"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		consumed:       consumed,
		handlerLatency: handlerLatency,
		handlerErrors:  handlerErrors,
		published:      published,
		publishErrors:  publishErrors,
		outboxPending:  outboxPending,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordConsume records a consumed message.
func (m *otelMetrics) RecordConsume(ctx context.Context, queue, eventType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("queue", queue),
		attribute.String("event_type", eventType),
	}

	m.consumed.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.handlerLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.handlerErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordPublish records a publish attempt.
func (m *otelMetrics) RecordPublish(ctx context.Context, eventType string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.publishErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordOutboxPending records the outbox backlog depth.
func (m *otelMetrics) RecordOutboxPending(ctx context.Context, pending int64) {
	m.outboxPending.Record(ctx, pending)
}
