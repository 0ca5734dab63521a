package scanning

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/factsentry/factsentry/internal/domain/scanning"
	"github.com/factsentry/factsentry/pkg/common/logger"
)

// PollerConfig controls the status poller's backoff schedule. All values are
// overridable; the defaults match the analysis backend's expected latencies.
type PollerConfig struct {
	// InitialDelay is the wait before the second status query.
	InitialDelay time.Duration
	// BackoffMultiplier scales the delay after each non-terminal attempt.
	BackoffMultiplier float64
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// PollTimeout bounds the total wall-clock time spent polling.
	PollTimeout time.Duration
}

// DefaultPollerConfig returns the standard polling schedule: 1s initial
// delay, doubling per attempt, capped at 30s, for up to 60s total.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          30 * time.Second,
		PollTimeout:       60 * time.Second,
	}
}

// errNotTerminal drives the backoff loop while the backend reports a
// non-terminal status.
var errNotTerminal = errors.New("scan status not terminal")

// StatusPoller repeatedly queries the analysis backend's status endpoint for
// a scan id with exponential backoff until a terminal state is reported or
// the poll timeout elapses.
type StatusPoller struct {
	reader scanning.StatusReader
	cfg    PollerConfig

	logger *logger.Logger
	tracer trace.Tracer
}

// NewStatusPoller creates a poller over the given status reader.
func NewStatusPoller(
	reader scanning.StatusReader,
	cfg PollerConfig,
	logger *logger.Logger,
	tracer trace.Tracer,
) *StatusPoller {
	return &StatusPoller{
		reader: reader,
		cfg:    cfg,
		logger: logger.With("component", "status_poller"),
		tracer: tracer,
	}
}

// Poll queries the status endpoint until the reported status is terminal
// (completed or failed) or the poll timeout elapses. It returns nil with no
// error when the timeout is reached before a terminal state. Transient query
// errors are logged and retried on the same schedule.
func (p *StatusPoller) Poll(ctx context.Context, scanID string) (*scanning.StatusSnapshot, error) {
	ctx, span := p.tracer.Start(ctx, "status_poller.scanning.poll",
		trace.WithAttributes(attribute.String("scan_id", scanID)))
	defer span.End()

	var snap *scanning.StatusSnapshot
	attempt := 0

	operation := func() error {
		attempt++
		s, err := p.reader.ReadStatus(ctx, scanID)
		if err != nil {
			p.logger.Warn(ctx, "Status query failed, will retry",
				"scan_id", scanID, "attempt", attempt, "error", err)
			return err
		}
		if !s.Status.Terminal() {
			return errNotTerminal
		}
		snap = s
		return nil
	}

	expBackoff := newExponentialBackOff(p.cfg)
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		span.AddEvent("poll_timeout", trace.WithAttributes(attribute.Int("attempts", attempt)))
		p.logger.Info(ctx, "Polling timed out without terminal status",
			"scan_id", scanID, "attempts", attempt, "timeout", p.cfg.PollTimeout.String())
		return nil, nil
	}

	span.SetAttributes(
		attribute.String("status", snap.Status.String()),
		attribute.Int("attempts", attempt),
	)
	return snap, nil
}

// newExponentialBackOff builds the poller's schedule:
// delay(n) = min(InitialDelay * BackoffMultiplier^n, MaxDelay), attempted
// until PollTimeout of wall-clock time has elapsed.
func newExponentialBackOff(cfg PollerConfig) *backoff.ExponentialBackOff {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = cfg.InitialDelay
	expBackoff.Multiplier = cfg.BackoffMultiplier
	expBackoff.MaxInterval = cfg.MaxDelay
	expBackoff.MaxElapsedTime = cfg.PollTimeout
	expBackoff.RandomizationFactor = 0
	return expBackoff
}

// PollingWaiter adapts the status poller to the ResultWaiter contract used by
// the orchestrator. A nil outcome with no error means the poll window elapsed
// without a terminal state.
type PollingWaiter struct{ poller *StatusPoller }

var _ scanning.ResultWaiter = (*PollingWaiter)(nil)

// NewPollingWaiter wraps a StatusPoller as a wait strategy.
func NewPollingWaiter(poller *StatusPoller) *PollingWaiter {
	return &PollingWaiter{poller: poller}
}

// WaitForResult polls until a terminal status or the poll timeout. The
// progress callback is not used by this strategy.
func (w *PollingWaiter) WaitForResult(
	ctx context.Context,
	session scanning.Session,
	_ scanning.ProgressFn,
) (*scanning.Outcome, error) {
	snap, err := w.poller.Poll(ctx, session.ScanID())
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return scanning.OutcomeFromSnapshot(*snap), nil
}
