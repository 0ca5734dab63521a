package scanning

import (
	"github.com/factsentry/factsentry/internal/domain/events"
)

// Event type constants for the scan pipeline. Batches flow from the scan
// service to the analysis backend; the remaining types flow back.
const (
	// EventTypeScanBatch carries a MessageBatch to the analysis backend.
	EventTypeScanBatch events.EventType = "ScanBatch"

	// EventTypeScanProgressed reports intermediate analysis progress.
	EventTypeScanProgressed events.EventType = "ScanProgressed"

	// EventTypeScanResult carries a complete result payload.
	EventTypeScanResult events.EventType = "ScanResult"

	// EventTypeScanProcessingFinished signals that analysis is complete and
	// the final result should be fetched from the status endpoint.
	EventTypeScanProcessingFinished events.EventType = "ScanProcessingFinished"

	// EventTypeScanFailed signals the backend could not analyze the scan.
	EventTypeScanFailed events.EventType = "ScanFailed"
)

// WaiterEventTypes lists the event types a result waiter subscribes to for a
// scan.
func WaiterEventTypes() []events.EventType {
	return []events.EventType{
		EventTypeScanProgressed,
		EventTypeScanResult,
		EventTypeScanProcessingFinished,
		EventTypeScanFailed,
	}
}

// ScanEvent is the payload shape shared by all backend-to-waiter events.
// Fields beyond EventType and ScanID are populated per event type: progress
// events carry counters, result events additionally carry flagged messages,
// and failure events carry an error message.
type ScanEvent struct {
	EventType       string           `json:"event_type"`
	ScanID          string           `json:"scan_id"`
	MessagesScanned int              `json:"messages_scanned,omitempty"`
	MessagesFlagged int              `json:"messages_flagged,omitempty"`
	FlaggedMessages []FlaggedMessage `json:"flagged_messages,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// OutcomeFromResultEvent converts a result event payload into a scan outcome.
func OutcomeFromResultEvent(evt ScanEvent) *Outcome {
	return &Outcome{
		Status:          ScanStatusCompleted,
		MessagesScanned: evt.MessagesScanned,
		MessagesFlagged: evt.MessagesFlagged,
		FlaggedMessages: evt.FlaggedMessages,
	}
}
