// Package serialization provides a registry-based system for serializing and
// deserializing domain events in the event bus infrastructure. It acts as a
// translation layer between domain objects and their JSON wire format.
//
// The package implements a registry pattern where serialization and
// deserialization functions are registered per event type. This keeps the
// domain layer clean of wire concerns and allows new event types to be added
// without modifying existing code.
package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/factsentry/factsentry/internal/domain/events"
	"github.com/factsentry/factsentry/internal/domain/scanning"
)

// SerializeFunc converts a domain object into a serialized byte slice.
type SerializeFunc func(payload any) ([]byte, error)

// DeserializeFunc converts a serialized byte slice back into a domain object.
type DeserializeFunc func(data []byte) (any, error)

// Global registries map event types to their serialization functions.
// This allows for dynamic dispatch based on event type at runtime.
var (
	serializerRegistry   = map[events.EventType]SerializeFunc{}
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterSerializeFunc registers a serialization function for a given event type.
func RegisterSerializeFunc(eventType events.EventType, fn SerializeFunc) {
	serializerRegistry[eventType] = fn
}

// RegisterDeserializeFunc registers a deserialization function for a given event type.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	deserializerRegistry[eventType] = fn
}

// SerializePayload converts a domain object into bytes using the registered
// serializer for its event type.
func SerializePayload(eventType events.EventType, payload any) ([]byte, error) {
	fn, ok := serializerRegistry[eventType]
	if !ok {
		return nil, fmt.Errorf("no serializer registered for eventType=%s", eventType)
	}
	return fn(payload)
}

// DeserializePayload converts bytes back into a domain object using the
// registered deserializer for its event type.
func DeserializePayload(eventType events.EventType, data []byte) (any, error) {
	fn, ok := deserializerRegistry[eventType]
	if !ok {
		return nil, fmt.Errorf("no deserializer registered for eventType=%s", eventType)
	}
	return fn(data)
}

func init() {
	RegisterEventSerializers()
}

// RegisterEventSerializers registers codecs for all supported event types.
// Batches flow outward to the analysis backend; the scan lifecycle events
// flow back and share the ScanEvent payload shape.
func RegisterEventSerializers() {
	RegisterSerializeFunc(scanning.EventTypeScanBatch, serializeMessageBatch)
	RegisterDeserializeFunc(scanning.EventTypeScanBatch, deserializeMessageBatch)

	for _, et := range scanning.WaiterEventTypes() {
		RegisterSerializeFunc(et, serializeScanEvent)
		RegisterDeserializeFunc(et, deserializeScanEvent)
	}
}

func serializeMessageBatch(payload any) ([]byte, error) {
	batch, ok := payload.(scanning.MessageBatch)
	if !ok {
		return nil, fmt.Errorf("serializeMessageBatch: payload is not scanning.MessageBatch")
	}
	return json.Marshal(batch)
}

func deserializeMessageBatch(data []byte) (any, error) {
	var batch scanning.MessageBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("unmarshal MessageBatch: %w", err)
	}
	return batch, nil
}

func serializeScanEvent(payload any) ([]byte, error) {
	evt, ok := payload.(scanning.ScanEvent)
	if !ok {
		return nil, fmt.Errorf("serializeScanEvent: payload is not scanning.ScanEvent")
	}
	return json.Marshal(evt)
}

func deserializeScanEvent(data []byte) (any, error) {
	var evt scanning.ScanEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal ScanEvent: %w", err)
	}
	if evt.ScanID == "" {
		return nil, fmt.Errorf("scan event missing scan_id")
	}
	return evt, nil
}
