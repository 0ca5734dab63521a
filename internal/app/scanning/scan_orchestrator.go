package scanning

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

// ScanOrchestrator composes the pipeline: traversal and batch publishing
// followed by one pluggable wait strategy, deriving an overall scan outcome
// from batch-publish health plus the wait result.
type ScanOrchestrator struct {
	traverser *ChannelTraverser
	publisher *BatchPublisher
	waiter    scanning.ResultWaiter

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ScanMetrics
}

// NewScanOrchestrator creates an orchestrator with the given wait strategy.
// Both the event-subscription waiter and the polling waiter satisfy the
// ResultWaiter contract.
func NewScanOrchestrator(
	traverser *ChannelTraverser,
	publisher *BatchPublisher,
	waiter scanning.ResultWaiter,
	metrics ScanMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *ScanOrchestrator {
	return &ScanOrchestrator{
		traverser: traverser,
		publisher: publisher,
		waiter:    waiter,
		logger:    logger.With("component", "scan_orchestrator"),
		tracer:    tracer,
		metrics:   metrics,
	}
}

// ExecuteScan runs one retrospective scan of the community's last
// daysRequested days and blocks until an overall outcome is known:
//
//   - No accessible channels: completed immediately with zero messages and
//     no bus interaction.
//   - Every batch publish failed: failed, without entering a wait phase.
//   - Wait expired: timeout.
//   - Wait resolved but some batches failed to publish: partial, with a
//     warning that results may be incomplete.
//   - Wait resolved and all batches published: completed.
func (o *ScanOrchestrator) ExecuteScan(
	ctx context.Context,
	communityID, initiatorID string,
	daysRequested int,
	onProgress scanning.ProgressFn,
) (*scanning.Outcome, error) {
	session := scanning.NewSession(communityID, initiatorID, daysRequested)

	ctx, span := o.tracer.Start(ctx, "scan_orchestrator.scanning.execute_scan",
		trace.WithAttributes(
			attribute.String("scan_id", session.ScanID()),
			attribute.String("community_id", communityID),
			attribute.Int("days_requested", daysRequested),
		))
	defer span.End()

	scanLogger := o.logger.With("scan_id", session.ScanID(), "community_id", communityID)
	scanLogger.Info(ctx, "Starting retrospective scan",
		"initiator_id", initiatorID,
		"days_requested", daysRequested,
		"cutoff", session.Cutoff().String(),
	)

	stream, err := o.traverser.Traverse(ctx, session)
	if err != nil {
		if errors.Is(err, scanning.ErrNoChannels) {
			span.AddEvent("no_channels_short_circuit")
			scanLogger.Info(ctx, "No accessible channels, nothing to scan")
			return o.finish(ctx, span, &scanning.Outcome{Status: scanning.ScanStatusCompleted}), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "traversal setup failed")
		return nil, fmt.Errorf("failed to start traversal: %w", err)
	}

	summary := o.publisher.PublishAll(ctx, session, stream)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	scanLogger.Info(ctx, "Traversal and publish phase complete",
		"messages_batched", summary.MessagesBatched,
		"batches_attempted", summary.BatchesAttempted,
		"batches_published", summary.BatchesPublished,
		"batches_failed", summary.BatchesFailed,
	)

	// No qualifying messages anywhere: nothing was handed to the backend, so
	// there is nothing to wait for.
	if summary.BatchesAttempted == 0 {
		span.AddEvent("no_qualifying_messages")
		return o.finish(ctx, span, &scanning.Outcome{Status: scanning.ScanStatusCompleted}), nil
	}

	// Structural failure: the backend never received anything, so a wait
	// phase could only ever time out.
	if summary.BatchesPublished == 0 {
		span.AddEvent("all_batches_failed")
		return o.finish(ctx, span, &scanning.Outcome{
			Status:          scanning.ScanStatusFailed,
			MessagesScanned: summary.MessagesBatched,
			WarningMessage:  "no batches could be delivered to the analysis backend",
		}), nil
	}

	outcome, err := o.waiter.WaitForResult(ctx, session, onProgress)
	switch {
	case err != nil && scanning.IsWaitTimeout(err):
		span.AddEvent("wait_expired", trace.WithAttributes(attribute.String("reason", err.Error())))
		outcome = &scanning.Outcome{
			Status:         scanning.ScanStatusTimeout,
			WarningMessage: err.Error(),
		}

	case err != nil:
		var failed *scanning.ScanFailedError
		if errors.As(err, &failed) {
			outcome = &scanning.Outcome{
				Status:         scanning.ScanStatusFailed,
				WarningMessage: failed.Reason,
			}
			break
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "wait failed")
		return nil, fmt.Errorf("failed waiting for scan result: %w", err)

	case outcome == nil:
		// The polling strategy signals an elapsed window with no outcome.
		span.AddEvent("poll_window_elapsed")
		outcome = &scanning.Outcome{
			Status:         scanning.ScanStatusTimeout,
			WarningMessage: "no terminal status before the poll timeout",
		}
	}

	if outcome.Status == scanning.ScanStatusCompleted && summary.BatchesFailed > 0 {
		outcome.Status = scanning.ScanStatusPartial
		outcome.WarningMessage = fmt.Sprintf(
			"%d of %d batches failed to publish; results may be incomplete",
			summary.BatchesFailed, summary.BatchesAttempted,
		)
	}

	return o.finish(ctx, span, outcome), nil
}

func (o *ScanOrchestrator) finish(ctx context.Context, span trace.Span, outcome *scanning.Outcome) *scanning.Outcome {
	o.metrics.IncScanOutcome(ctx, outcome.Status)
	span.SetAttributes(attribute.String("outcome_status", outcome.Status.String()))
	o.logger.Info(ctx, "Scan finished",
		"status", outcome.Status.String(),
		"messages_scanned", outcome.MessagesScanned,
		"messages_flagged", outcome.MessagesFlagged,
		"warning", outcome.WarningMessage,
	)
	return outcome
}
