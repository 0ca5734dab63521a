package events

import "time"

// EventMetadata carries transport-level details about where an event came from.
// Components that need to reason about delivery (e.g. offset tracking) can use
// it without depending on the concrete broker.
type EventMetadata struct {
	Partition int32
	Offset    int64
}

// EventEnvelope wraps a domain payload with the routing and bookkeeping data
// the event bus needs to deliver it.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier like a scan id that events can be grouped or partitioned by.
	Key string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data (e.g. MessageBatch, ScanProgressEvent).
	// The concrete type depends on the EventType.
	Payload any

	// Metadata contains transport-level delivery details.
	Metadata EventMetadata
}
