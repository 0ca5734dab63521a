// Package scanning implements the scan batching and result-reconciliation
// pipeline: channel traversal, bounded batch construction and handoff to the
// event bus, and the waiting strategies used to learn when a scan finished.
package scanning

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

// defaultPageSize is the per-channel history page size requested from the
// platform.
const defaultPageSize = 100

// ChannelTraverser walks a community's accessible text channels backward in
// time from the most recent message to the session cutoff, yielding
// qualifying messages as a lazy, finite, non-restartable stream.
type ChannelTraverser struct {
	source   scanning.ChannelSource
	pageSize int

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ScanMetrics
}

// NewChannelTraverser creates a traverser over the provided channel source.
func NewChannelTraverser(
	source scanning.ChannelSource,
	metrics ScanMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *ChannelTraverser {
	return &ChannelTraverser{
		source:   source,
		pageSize: defaultPageSize,
		logger:   logger.With("component", "channel_traverser"),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Traverse enumerates the community's text channels and returns a stream of
// qualifying messages, iterating channels in enumeration order and walking
// each strictly backward in time until the cutoff. It returns
// scanning.ErrNoChannels when the community has no accessible text channels,
// allowing the caller to short-circuit instead of running an empty scan.
//
// The stream is closed once every channel is exhausted or the context is
// canceled. A failed page fetch ends that channel's traversal (partial
// coverage) and is never fatal to the scan.
func (t *ChannelTraverser) Traverse(ctx context.Context, session scanning.Session) (<-chan scanning.MessageRecord, error) {
	ctx, span := t.tracer.Start(ctx, "channel_traverser.scanning.traverse",
		trace.WithAttributes(
			attribute.String("scan_id", session.ScanID()),
			attribute.String("community_id", session.CommunityID()),
			attribute.String("cutoff", session.Cutoff().String()),
		))
	defer span.End()

	channels, err := t.source.ListTextChannels(ctx, session.CommunityID())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list channels")
		return nil, fmt.Errorf("failed to list text channels for community %s: %w", session.CommunityID(), err)
	}

	if len(channels) == 0 {
		span.AddEvent("no_accessible_channels")
		return nil, scanning.ErrNoChannels
	}
	span.SetAttributes(attribute.Int("channel_count", len(channels)))

	out := make(chan scanning.MessageRecord)
	go func() {
		defer close(out)
		for _, ch := range channels {
			if ctx.Err() != nil {
				return
			}
			t.walkChannel(ctx, session, ch, out)
		}
	}()

	return out, nil
}

// walkChannel pages backward through a single channel's history, stopping at
// the cutoff or when the channel is exhausted.
func (t *ChannelTraverser) walkChannel(
	ctx context.Context,
	session scanning.Session,
	ch scanning.Channel,
	out chan<- scanning.MessageRecord,
) {
	chLogger := t.logger.With("channel_id", ch.ID, "channel_name", ch.Name, "scan_id", session.ScanID())

	beforeID := ""
	for {
		page, err := t.source.FetchMessagesBefore(ctx, ch.ID, beforeID, t.pageSize)
		if err != nil {
			// Partial coverage: log and move on to the next channel.
			chLogger.Warn(ctx, "Channel history fetch failed, skipping rest of channel", "error", err)
			t.metrics.IncChannelErrors(ctx)
			return
		}

		for _, msg := range page {
			// Pages are newest-first; the first message at or before the
			// cutoff ends this channel's traversal.
			if !msg.Timestamp.After(session.Cutoff()) {
				return
			}
			beforeID = msg.MessageID

			if !msg.Qualifies() {
				continue
			}

			t.metrics.IncMessagesTraversed(ctx)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}

		if len(page) < t.pageSize {
			return
		}
	}
}
