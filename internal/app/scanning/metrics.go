package scanning

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/factsentry/factsentry/internal/domain/scanning"
)

// ScanMetrics defines the metrics operations needed by the scan pipeline.
type ScanMetrics interface {
	// Traversal metrics
	IncMessagesTraversed(ctx context.Context)
	IncChannelErrors(ctx context.Context)

	// Batch metrics
	IncBatchesPublished(ctx context.Context)
	IncBatchPublishErrors(ctx context.Context)

	// Wait metrics
	IncEventsMatched(ctx context.Context)
	IncEventsIgnored(ctx context.Context)
	ObserveWaitDuration(ctx context.Context, strategy string, d time.Duration)

	// Outcome metrics
	IncScanOutcome(ctx context.Context, status scanning.ScanStatus)
}

// scanMetrics implements ScanMetrics.
type scanMetrics struct {
	messagesTraversed metric.Int64Counter
	channelErrors     metric.Int64Counter

	batchesPublished   metric.Int64Counter
	batchPublishErrors metric.Int64Counter

	eventsMatched metric.Int64Counter
	eventsIgnored metric.Int64Counter
	waitDuration  metric.Float64Histogram

	scanOutcomes metric.Int64Counter
}

const namespace = "factsentry"

// NewScanMetrics creates a new scan metrics instance.
func NewScanMetrics(mp metric.MeterProvider) (ScanMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(scanMetrics)
	var err error

	if m.messagesTraversed, err = meter.Int64Counter(
		"messages_traversed_total",
		metric.WithDescription("Total qualifying messages yielded by channel traversal"),
	); err != nil {
		return nil, err
	}

	if m.channelErrors, err = meter.Int64Counter(
		"channel_errors_total",
		metric.WithDescription("Total channel history fetches that failed"),
	); err != nil {
		return nil, err
	}

	if m.batchesPublished, err = meter.Int64Counter(
		"batches_published_total",
		metric.WithDescription("Total batches successfully published to the bus"),
	); err != nil {
		return nil, err
	}

	if m.batchPublishErrors, err = meter.Int64Counter(
		"batch_publish_errors_total",
		metric.WithDescription("Total batch publishes that failed"),
	); err != nil {
		return nil, err
	}

	if m.eventsMatched, err = meter.Int64Counter(
		"scan_events_matched_total",
		metric.WithDescription("Total bus events matching an in-flight scan id"),
	); err != nil {
		return nil, err
	}

	if m.eventsIgnored, err = meter.Int64Counter(
		"scan_events_ignored_total",
		metric.WithDescription("Total bus events acknowledged and ignored for other scan ids"),
	); err != nil {
		return nil, err
	}

	if m.waitDuration, err = meter.Float64Histogram(
		"wait_duration_seconds",
		metric.WithDescription("Duration of the wait phase per strategy"),
	); err != nil {
		return nil, err
	}

	if m.scanOutcomes, err = meter.Int64Counter(
		"scan_outcomes_total",
		metric.WithDescription("Total scans by final outcome status"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *scanMetrics) IncMessagesTraversed(ctx context.Context) {
	m.messagesTraversed.Add(ctx, 1)
}

func (m *scanMetrics) IncChannelErrors(ctx context.Context) {
	m.channelErrors.Add(ctx, 1)
}

func (m *scanMetrics) IncBatchesPublished(ctx context.Context) {
	m.batchesPublished.Add(ctx, 1)
}

func (m *scanMetrics) IncBatchPublishErrors(ctx context.Context) {
	m.batchPublishErrors.Add(ctx, 1)
}

func (m *scanMetrics) IncEventsMatched(ctx context.Context) {
	m.eventsMatched.Add(ctx, 1)
}

func (m *scanMetrics) IncEventsIgnored(ctx context.Context) {
	m.eventsIgnored.Add(ctx, 1)
}

func (m *scanMetrics) ObserveWaitDuration(ctx context.Context, strategy string, d time.Duration) {
	m.waitDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("strategy", strategy)))
}

func (m *scanMetrics) IncScanOutcome(ctx context.Context, status scanning.ScanStatus) {
	m.scanOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status.String())))
}
