// Package memory provides an in-memory implementation of the event bus. It
// offers a lightweight, non-persistent broker suitable for testing and local
// development environments where durability is not required.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/factsentry/factsentry/internal/domain/events"
)

type subscriber struct {
	ctx     context.Context
	handler events.HandlerFunc
}

var _ events.EventBus = (*Broker)(nil)

// Broker provides an in-memory implementation of the events.EventBus
// interface. Each event type keeps its own subscriber list, so subjects are
// delivered independently; a handler error on one subject never affects the
// others.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[events.EventType][]*subscriber
	closed      bool
}

// NewBroker creates and initializes a new in-memory event bus.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[events.EventType][]*subscriber)}
}

// Publish delivers the event synchronously to every live subscriber for its
// type. Handler errors are collected but delivery continues; subscribers
// whose contexts have ended are skipped.
func (b *Broker) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pParams events.PublishParams
	for _, opt := range opts {
		opt(&pParams)
	}
	if pParams.Key != "" {
		event.Key = pParams.Key
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("event bus is closed")
	}
	// Copy the subscriber list so handlers never run under the lock.
	subs := make([]*subscriber, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		ack := func(error) {}
		if err := sub.handler(ctx, event, ack); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// PublishDomainEvent satisfies the DomainEventPublisher port.
func (b *Broker) PublishDomainEvent(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	return b.Publish(ctx, event, opts...)
}

// Subscribe registers a handler for the given event types. The subscription
// is released when ctx ends, so per-scan subscriptions cannot leak across
// invocations.
func (b *Broker) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	sub := &subscriber{ctx: ctx, handler: handler}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("event bus is closed")
	}
	for _, et := range eventTypes {
		b.subscribers[et] = append(b.subscribers[et], sub)
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, et := range eventTypes {
			subs := b.subscribers[et]
			for i, s := range subs {
				if s == sub {
					b.subscribers[et] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
	}()

	return nil
}

// Close shuts down the broker and drops all subscriptions.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = make(map[events.EventType][]*subscriber)
	return nil
}
