package scanning

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoChannels indicates a community exposed no accessible text channels.
// The orchestrator short-circuits on it rather than producing a trivial
// empty scan.
var ErrNoChannels = errors.New("no accessible text channels")

// SilenceTimeoutError indicates no matching event arrived within the silence
// window. It is distinguishable from MaxWaitTimeoutError so callers can tell
// "nothing came back" apart from "the backend is slow but alive was exceeded".
type SilenceTimeoutError struct {
	Window time.Duration
}

func (e *SilenceTimeoutError) Error() string {
	return fmt.Sprintf("no activity for %.0f seconds", e.Window.Seconds())
}

// MaxWaitTimeoutError indicates the absolute wait ceiling elapsed, regardless
// of how recently events arrived.
type MaxWaitTimeoutError struct {
	Window time.Duration
}

func (e *MaxWaitTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %.0f seconds total", e.Window.Seconds())
}

// ScanFailedError indicates the analysis backend reported an explicit failure
// for the scan.
type ScanFailedError struct {
	Reason string
}

func (e *ScanFailedError) Error() string {
	if e.Reason == "" {
		return "analysis backend reported failure"
	}
	return fmt.Sprintf("analysis backend reported failure: %s", e.Reason)
}

// IsWaitTimeout reports whether err is either of the two wait timeout errors.
func IsWaitTimeout(err error) bool {
	var silence *SilenceTimeoutError
	var maxWait *MaxWaitTimeoutError
	return errors.As(err, &silence) || errors.As(err, &maxWait)
}
