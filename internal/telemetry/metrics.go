package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync engine meter
	SyncMetricsMeterName = "github.com/stacklok/record-sync/sync"

	// SyncTracerName is the name used for the sync engine tracer
	SyncTracerName = "github.com/stacklok/record-sync/sync"
)

// SyncMetrics holds the OpenTelemetry instruments for sync operations.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	syncDuration     metric.Float64Histogram
	resolutions      metric.Int64Counter
	filterRejections metric.Int64Counter
	queueSize        metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"record_sync_duration_seconds",
		metric.WithDescription("Duration of sync executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	resolutions, err := meter.Int64Counter(
		"record_sync_resolutions_total",
		metric.WithDescription("Per-record resolution actions applied, by action and outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	filterRejections, err := meter.Int64Counter(
		"record_sync_filter_rejections_total",
		metric.WithDescription("Detected events rejected by the filter, by layer"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	queueSize, err := meter.Int64Gauge(
		"record_sync_queue_size",
		metric.WithDescription("Number of pending sync triggers"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:     syncDuration,
		resolutions:      resolutions,
		filterRejections: filterRejections,
		queueSize:        queueSize,
	}, nil
}

// RecordSyncDuration records the duration of one sync execution
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, ownerID string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("owner", ownerID),
		attribute.Bool("success", success),
	))
}

// RecordResolution counts one applied per-record action
func (m *SyncMetrics) RecordResolution(ctx context.Context, action string, success bool) {
	if m == nil || m.resolutions == nil {
		return
	}

	m.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("success", success),
	))
}

// RecordFilterRejection counts an event rejected at layer
func (m *SyncMetrics) RecordFilterRejection(ctx context.Context, layer, kind string) {
	if m == nil || m.filterRejections == nil {
		return
	}

	m.filterRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("kind", kind),
	))
}

// RecordQueueSize records the current number of pending triggers
func (m *SyncMetrics) RecordQueueSize(ctx context.Context, size int) {
	if m == nil || m.queueSize == nil {
		return
	}

	m.queueSize.Record(ctx, int64(size))
}
