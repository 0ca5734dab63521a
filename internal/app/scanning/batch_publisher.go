package scanning

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/factsentry/factsentry/internal/domain/events"
	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

// BatchPublisher accumulates traversed messages into size-bounded batches and
// publishes them to the event bus, tracking success and failure counts and
// marking exactly one batch as final.
//
// It uses a one-batch lookahead: a full batch is held back until a successor
// exists, because finality can only be known once traversal ends. Without the
// lookahead, the last full-size batch would be misidentified as final whenever
// no partial batch follows it.
type BatchPublisher struct {
	publisher events.DomainEventPublisher
	batchSize int

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ScanMetrics
}

// NewBatchPublisher creates a publisher that emits batches of up to batchSize
// messages. A batchSize of zero or less falls back to the domain default.
func NewBatchPublisher(
	publisher events.DomainEventPublisher,
	batchSize int,
	metrics ScanMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *BatchPublisher {
	if batchSize <= 0 {
		batchSize = scanning.DefaultBatchSize
	}
	return &BatchPublisher{
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger.With("component", "batch_publisher"),
		tracer:    tracer,
		metrics:   metrics,
	}
}

// PublishAll drains the message stream into batches and publishes them,
// returning counts of batches attempted, published, and failed. A publish
// failure is logged and counted but never stops subsequent batches; the scan
// degrades gracefully rather than aborting.
//
// Batch numbers are contiguous starting at 1 for the session's scan id. If
// the stream yields no qualifying messages at all, no batches are published
// and the summary reports zero attempts.
func (p *BatchPublisher) PublishAll(
	ctx context.Context,
	session scanning.Session,
	messages <-chan scanning.MessageRecord,
) scanning.PublishSummary {
	ctx, span := p.tracer.Start(ctx, "batch_publisher.scanning.publish_all",
		trace.WithAttributes(
			attribute.String("scan_id", session.ScanID()),
			attribute.Int("batch_size", p.batchSize),
		))
	defer span.End()

	var (
		summary  scanning.PublishSummary
		current  []scanning.MessageRecord
		pending  []scanning.MessageRecord
		batchNum int
	)

	for msg := range messages {
		current = append(current, msg)
		summary.MessagesBatched++

		if len(current) < p.batchSize {
			continue
		}

		// The accumulator is full. Publish the previously held batch (it now
		// has a successor, so it cannot be final) and hold the new one.
		if pending != nil {
			batchNum++
			p.publishBatch(ctx, session, batchNum, false, pending, &summary)
		}
		pending = current
		current = nil
	}

	// Traversal is complete; flush. Any partial accumulator displaces the
	// held batch, which is published non-final first.
	if len(current) > 0 {
		if pending != nil {
			batchNum++
			p.publishBatch(ctx, session, batchNum, false, pending, &summary)
		}
		pending = current
	}

	if pending != nil {
		batchNum++
		if err := p.publishBatch(ctx, session, batchNum, true, pending, &summary); err == nil {
			summary.FinalMarked = true
		}
	}

	span.SetAttributes(
		attribute.Int("batches_attempted", summary.BatchesAttempted),
		attribute.Int("batches_published", summary.BatchesPublished),
		attribute.Int("batches_failed", summary.BatchesFailed),
		attribute.Int("messages_batched", summary.MessagesBatched),
	)

	return summary
}

func (p *BatchPublisher) publishBatch(
	ctx context.Context,
	session scanning.Session,
	number int,
	final bool,
	messages []scanning.MessageRecord,
	summary *scanning.PublishSummary,
) error {
	batch := scanning.NewMessageBatch(session, number, final, messages)
	summary.BatchesAttempted++

	evt := events.EventEnvelope{
		Type:      scanning.EventTypeScanBatch,
		Key:       session.ScanID(),
		Timestamp: time.Now().UTC(),
		Payload:   batch,
	}

	if err := p.publisher.PublishDomainEvent(ctx, evt, events.WithKey(session.ScanID())); err != nil {
		summary.BatchesFailed++
		p.metrics.IncBatchPublishErrors(ctx)
		p.logger.Error(ctx, "Failed to publish batch",
			"scan_id", session.ScanID(),
			"batch_number", number,
			"is_final", final,
			"message_count", len(messages),
			"error", err,
		)
		return err
	}

	summary.BatchesPublished++
	p.metrics.IncBatchesPublished(ctx)
	p.logger.Debug(ctx, "Published batch",
		"scan_id", session.ScanID(),
		"batch_number", number,
		"is_final", final,
		"message_count", len(messages),
	)

	return nil
}
