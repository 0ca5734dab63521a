package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factsentry/factsentry/internal/domain/events"
	"github.com/factsentry/factsentry/internal/domain/scanning"
)

func TestPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)

	expected := scanning.ScanEvent{EventType: "scan_result", ScanID: "scan-1", MessagesScanned: 10}

	err := broker.Subscribe(ctx, []events.EventType{scanning.EventTypeScanResult},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			defer wg.Done()
			ack(nil)
			assert.Equal(t, scanning.EventTypeScanResult, evt.Type)
			assert.Equal(t, expected, evt.Payload)
			return nil
		})
	require.NoError(t, err)

	err = broker.Publish(ctx, events.EventEnvelope{
		Type:    scanning.EventTypeScanResult,
		Payload: expected,
	})
	require.NoError(t, err)

	wg.Wait()
}

func TestSubjectsAreIndependent(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	ctx := context.Background()

	var progressCount, resultCount int
	var mu sync.Mutex

	err := broker.Subscribe(ctx, []events.EventType{scanning.EventTypeScanProgressed},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			mu.Lock()
			progressCount++
			mu.Unlock()
			ack(nil)
			return nil
		})
	require.NoError(t, err)

	err = broker.Subscribe(ctx, []events.EventType{scanning.EventTypeScanResult},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			mu.Lock()
			resultCount++
			mu.Unlock()
			ack(nil)
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, events.EventEnvelope{Type: scanning.EventTypeScanProgressed}))
	require.NoError(t, broker.Publish(ctx, events.EventEnvelope{Type: scanning.EventTypeScanProgressed}))
	require.NoError(t, broker.Publish(ctx, events.EventEnvelope{Type: scanning.EventTypeScanResult}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, progressCount)
	assert.Equal(t, 1, resultCount)
}

func TestHandlerErrorSurfacesToPublisher(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	ctx := context.Background()
	expectedErr := errors.New("handler error")

	err := broker.Subscribe(ctx, []events.EventType{scanning.EventTypeScanFailed},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			return expectedErr
		})
	require.NoError(t, err)

	err = broker.Publish(ctx, events.EventEnvelope{Type: scanning.EventTypeScanFailed})
	assert.ErrorIs(t, err, expectedErr)
}

func TestSubscriptionReleasedOnContextCancel(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	subCtx, cancel := context.WithCancel(context.Background())

	var delivered int
	var mu sync.Mutex

	err := broker.Subscribe(subCtx, []events.EventType{scanning.EventTypeScanResult},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			mu.Lock()
			delivered++
			mu.Unlock()
			ack(nil)
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, broker.Publish(context.Background(), events.EventEnvelope{Type: scanning.EventTypeScanResult}))

	cancel()
	// Canceled subscribers are skipped immediately and removed shortly after.
	require.Eventually(t, func() bool {
		err := broker.Publish(context.Background(), events.EventEnvelope{Type: scanning.EventTypeScanResult})
		mu.Lock()
		defer mu.Unlock()
		return err == nil && delivered == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublishWithKeyOption(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)

	err := broker.Subscribe(ctx, []events.EventType{scanning.EventTypeScanBatch},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
			defer wg.Done()
			ack(nil)
			assert.Equal(t, "scan-42", evt.Key)
			return nil
		})
	require.NoError(t, err)

	err = broker.Publish(ctx, events.EventEnvelope{Type: scanning.EventTypeScanBatch},
		events.WithKey("scan-42"))
	require.NoError(t, err)

	wg.Wait()
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	ctx := context.Background()
	var wg sync.WaitGroup
	eventCount := 100
	subscriberCount := 5
	wg.Add(eventCount * subscriberCount)

	for i := 0; i < subscriberCount; i++ {
		err := broker.Subscribe(ctx, []events.EventType{scanning.EventTypeScanProgressed},
			func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error {
				defer wg.Done()
				ack(nil)
				return nil
			})
		require.NoError(t, err)
	}

	for i := 0; i < eventCount; i++ {
		go func(id int) {
			err := broker.Publish(ctx, events.EventEnvelope{
				Type:    scanning.EventTypeScanProgressed,
				Payload: scanning.ScanEvent{ScanID: fmt.Sprintf("scan-%d", id)},
			})
			assert.NoError(t, err)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success.
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for handlers")
	}
}

func TestClosedBrokerRejectsOperations(t *testing.T) {
	t.Parallel()

	broker := NewBroker()
	require.NoError(t, broker.Close())

	err := broker.Publish(context.Background(), events.EventEnvelope{Type: scanning.EventTypeScanResult})
	require.Error(t, err)

	err = broker.Subscribe(context.Background(), []events.EventType{scanning.EventTypeScanResult},
		func(ctx context.Context, evt events.EventEnvelope, ack events.AckFunc) error { return nil })
	require.Error(t, err)
}
