package scanning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/factsentry/factsentry/internal/domain/events"
	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

// WaitConfig controls the event waiter's three independent timers. All
// values are overridable.
type WaitConfig struct {
	// StallWarning is a soft timer; when it fires the progress callback is
	// informed that the scan looks slow. It never fails the wait.
	StallWarning time.Duration
	// SilenceTimeout fails the wait if no event matching the scan id arrives
	// within the window. It resets on every matching event.
	SilenceTimeout time.Duration
	// MaxWait is an absolute ceiling on total wait time. It never resets.
	MaxWait time.Duration
}

// DefaultWaitConfig returns the standard timer windows: 30s stall warning,
// 60s silence timeout, 300s max wait.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		StallWarning:   30 * time.Second,
		SilenceTimeout: 60 * time.Second,
		MaxWait:        5 * time.Minute,
	}
}

// EventWaiter waits for a scan's terminal signal by subscribing to the scan's
// result, progress, processing-finished, and failed events on the bus. It
// resolves exactly once: with an outcome, with a backend failure, or with one
// of two distinguishable timeout errors (silence vs. max wait).
type EventWaiter struct {
	bus          events.EventBus
	statusReader scanning.StatusReader
	cfg          WaitConfig

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics ScanMetrics
}

var _ scanning.ResultWaiter = (*EventWaiter)(nil)

// NewEventWaiter creates a waiter over the given bus. The status reader
// bridges processing-finished events to the REST endpoint for the final
// result payload.
func NewEventWaiter(
	bus events.EventBus,
	statusReader scanning.StatusReader,
	cfg WaitConfig,
	metrics ScanMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *EventWaiter {
	return &EventWaiter{
		bus:          bus,
		statusReader: statusReader,
		cfg:          cfg,
		logger:       logger.With("component", "event_waiter"),
		tracer:       tracer,
		metrics:      metrics,
	}
}

// WaitForResult subscribes to the session's scan events and blocks until a
// terminal event arrives, a timeout fires, or the context is canceled.
// Events for other scan ids are acknowledged and ignored without touching
// any timer. Whatever resolves the wait also stops all timers and releases
// the subscription, so no bus resources leak across invocations.
func (w *EventWaiter) WaitForResult(
	ctx context.Context,
	session scanning.Session,
	onProgress scanning.ProgressFn,
) (*scanning.Outcome, error) {
	ctx, span := w.tracer.Start(ctx, "event_waiter.scanning.wait_for_result",
		trace.WithAttributes(
			attribute.String("scan_id", session.ScanID()),
			attribute.String("silence_timeout", w.cfg.SilenceTimeout.String()),
			attribute.String("max_wait", w.cfg.MaxWait.String()),
		))
	defer span.End()

	waitCtx, cancel := context.WithCancel(ctx)
	rw := &resultWait{
		scanID:       session.ScanID(),
		cfg:          w.cfg,
		onProgress:   onProgress,
		statusReader: w.statusReader,
		cancel:       cancel,
		done:         make(chan struct{}),
		logger:       w.logger.With("scan_id", session.ScanID()),
		metrics:      w.metrics,
	}
	defer rw.teardown()

	start := time.Now()
	rw.startTimers()

	// A single subscription covers all waiter subjects; the bus delivers each
	// subject's messages on its own receive loop and a handler error in one
	// loop never cancels the others.
	if err := w.bus.Subscribe(waitCtx, scanning.WaiterEventTypes(), rw.handleEvent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return nil, fmt.Errorf("failed to subscribe to scan events: %w", err)
	}

	select {
	case <-rw.done:
	case <-ctx.Done():
		rw.resolve(nil, ctx.Err())
		<-rw.done
	}

	w.metrics.ObserveWaitDuration(ctx, "event", time.Since(start))

	outcome, err := rw.result()
	if err != nil {
		span.RecordError(err)
		if scanning.IsWaitTimeout(err) {
			span.SetStatus(codes.Error, "wait timed out")
		} else {
			span.SetStatus(codes.Error, "wait failed")
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("status", outcome.Status.String()))
	span.SetStatus(codes.Ok, "wait resolved")
	return outcome, nil
}

// resultWait holds the per-invocation wait state: the resolution guard, the
// three timers, and the subscription's cancel func. All paths that resolve
// the wait funnel through resolve, which performs teardown exactly once.
type resultWait struct {
	scanID       string
	cfg          WaitConfig
	onProgress   scanning.ProgressFn
	statusReader scanning.StatusReader

	cancel context.CancelFunc
	done   chan struct{}

	resolveOnce sync.Once
	outcome     *scanning.Outcome
	err         error

	timerMu      sync.Mutex
	stallTimer   *time.Timer
	silenceTimer *time.Timer
	maxTimer     *time.Timer

	logger  *logger.Logger
	metrics ScanMetrics
}

func (rw *resultWait) startTimers() {
	rw.timerMu.Lock()
	defer rw.timerMu.Unlock()

	rw.stallTimer = time.AfterFunc(rw.cfg.StallWarning, func() {
		rw.logger.Warn(context.Background(), "Scan appears stalled, no events yet",
			"stall_warning", rw.cfg.StallWarning.String())
		if rw.onProgress != nil {
			rw.onProgress(scanning.ScanEvent{ScanID: rw.scanID})
		}
	})
	rw.silenceTimer = time.AfterFunc(rw.cfg.SilenceTimeout, func() {
		rw.resolve(nil, &scanning.SilenceTimeoutError{Window: rw.cfg.SilenceTimeout})
	})
	rw.maxTimer = time.AfterFunc(rw.cfg.MaxWait, func() {
		rw.resolve(nil, &scanning.MaxWaitTimeoutError{Window: rw.cfg.MaxWait})
	})
}

// touch resets the activity-relative timers. The max-wait timer is an
// absolute ceiling and is never reset.
func (rw *resultWait) touch() {
	rw.timerMu.Lock()
	defer rw.timerMu.Unlock()

	if rw.stallTimer != nil {
		rw.stallTimer.Reset(rw.cfg.StallWarning)
	}
	if rw.silenceTimer != nil {
		rw.silenceTimer.Reset(rw.cfg.SilenceTimeout)
	}
}

// handleEvent is the bus handler shared by all waiter subjects. Every inbound
// message is acknowledged: non-matching and malformed events are consumed and
// dropped so the broker can advance, and they never reset any timer.
func (rw *resultWait) handleEvent(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
	payload, ok := evt.Payload.(scanning.ScanEvent)
	if !ok {
		ack(nil)
		rw.logger.Warn(ctx, "Dropping event with unexpected payload type",
			"event_type", string(evt.Type))
		return nil
	}

	if payload.ScanID != rw.scanID {
		ack(nil)
		rw.metrics.IncEventsIgnored(ctx)
		return nil
	}

	rw.metrics.IncEventsMatched(ctx)
	rw.touch()

	switch evt.Type {
	case scanning.EventTypeScanProgressed:
		ack(nil)
		if rw.onProgress != nil {
			rw.onProgress(payload)
		}

	case scanning.EventTypeScanResult:
		ack(nil)
		rw.resolve(scanning.OutcomeFromResultEvent(payload), nil)

	case scanning.EventTypeScanProcessingFinished:
		ack(nil)
		rw.resolveFromStatus(ctx)

	case scanning.EventTypeScanFailed:
		ack(nil)
		rw.resolve(nil, &scanning.ScanFailedError{Reason: payload.ErrorMessage})

	default:
		ack(nil)
	}

	return nil
}

// resolveFromStatus bridges a processing-finished event to the REST status
// endpoint, which holds the final result payload.
func (rw *resultWait) resolveFromStatus(ctx context.Context) {
	snap, err := rw.statusReader.ReadStatus(ctx, rw.scanID)
	if err != nil {
		rw.resolve(nil, fmt.Errorf("failed to fetch final result for scan %s: %w", rw.scanID, err))
		return
	}
	rw.resolve(scanning.OutcomeFromSnapshot(*snap), nil)
}

// resolve records the wait's result exactly once and tears everything down.
// Later calls are no-ops, so duplicate or out-of-order terminal events and
// racing timers are harmless.
func (rw *resultWait) resolve(outcome *scanning.Outcome, err error) {
	rw.resolveOnce.Do(func() {
		rw.outcome, rw.err = outcome, err
		rw.teardown()
		close(rw.done)
	})
}

// teardown stops all timers and cancels the subscription context. It is
// idempotent and safe to invoke multiple times.
func (rw *resultWait) teardown() {
	rw.timerMu.Lock()
	if rw.stallTimer != nil {
		rw.stallTimer.Stop()
	}
	if rw.silenceTimer != nil {
		rw.silenceTimer.Stop()
	}
	if rw.maxTimer != nil {
		rw.maxTimer.Stop()
	}
	rw.timerMu.Unlock()

	rw.cancel()
}

func (rw *resultWait) result() (*scanning.Outcome, error) { return rw.outcome, rw.err }
