package events

import "context"

// AckFunc acknowledges an event once the handler has finished with it. Passing
// a non-nil error records the failure; the event is still consumed either way,
// so handlers that cannot process a message must not expect redelivery.
type AckFunc func(err error)

// HandlerFunc processes a single event delivered by the bus. Implementations
// must call ack exactly once, even for events they choose to ignore, so the
// underlying broker can advance past the message.
type HandlerFunc func(ctx context.Context, evt EventEnvelope, ack AckFunc) error
