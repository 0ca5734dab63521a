package scanning

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/factsentry/factsentry/internal/domain/events"
	"github.com/factsentry/factsentry/internal/domain/scanning"
)

// mockChannelSource implements scanning.ChannelSource for testing.
type mockChannelSource struct{ mock.Mock }

func (m *mockChannelSource) ListTextChannels(ctx context.Context, communityID string) ([]scanning.Channel, error) {
	args := m.Called(ctx, communityID)
	if channels := args.Get(0); channels != nil {
		return channels.([]scanning.Channel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChannelSource) FetchMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]scanning.MessageRecord, error) {
	args := m.Called(ctx, channelID, beforeID, limit)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]scanning.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockStatusReader implements scanning.StatusReader for testing.
type mockStatusReader struct{ mock.Mock }

func (m *mockStatusReader) ReadStatus(ctx context.Context, scanID string) (*scanning.StatusSnapshot, error) {
	args := m.Called(ctx, scanID)
	if snap := args.Get(0); snap != nil {
		return snap.(*scanning.StatusSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockResultWaiter implements scanning.ResultWaiter for testing.
type mockResultWaiter struct{ mock.Mock }

func (m *mockResultWaiter) WaitForResult(ctx context.Context, session scanning.Session, onProgress scanning.ProgressFn) (*scanning.Outcome, error) {
	args := m.Called(ctx, session, onProgress)
	if outcome := args.Get(0); outcome != nil {
		return outcome.(*scanning.Outcome), args.Error(1)
	}
	return nil, args.Error(1)
}

// capturePublisher records every published envelope and can be told to fail
// specific batch numbers.
type capturePublisher struct {
	published []events.EventEnvelope
	failBatch map[int]error
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{failBatch: make(map[int]error)}
}

func (p *capturePublisher) PublishDomainEvent(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if batch, ok := event.Payload.(scanning.MessageBatch); ok {
		if err := p.failBatch[batch.BatchNumber]; err != nil {
			return err
		}
	}
	p.published = append(p.published, event)
	return nil
}

func (p *capturePublisher) batches() []scanning.MessageBatch {
	batches := make([]scanning.MessageBatch, 0, len(p.published))
	for _, evt := range p.published {
		batches = append(batches, evt.Payload.(scanning.MessageBatch))
	}
	return batches
}

// noopScanMetrics satisfies ScanMetrics without recording anything.
type noopScanMetrics struct{}

func (noopScanMetrics) IncMessagesTraversed(context.Context) {}
func (noopScanMetrics) IncChannelErrors(context.Context) {}
func (noopScanMetrics) IncBatchesPublished(context.Context) {}
func (noopScanMetrics) IncBatchPublishErrors(context.Context) {}
func (noopScanMetrics) IncEventsMatched(context.Context) {}
func (noopScanMetrics) IncEventsIgnored(context.Context) {}
func (noopScanMetrics) ObserveWaitDuration(context.Context, string, time.Duration) {}
func (noopScanMetrics) IncScanOutcome(context.Context, scanning.ScanStatus) {}

// drainStream collects a message stream into a slice for assertions.
func drainStream(stream <-chan scanning.MessageRecord) []scanning.MessageRecord {
	var msgs []scanning.MessageRecord
	for msg := range stream {
		msgs = append(msgs, msg)
	}
	return msgs
}

// streamOf turns a fixed set of messages into a closed stream, bypassing the
// traverser for publisher-focused tests.
func streamOf(msgs ...scanning.MessageRecord) <-chan scanning.MessageRecord {
	out := make(chan scanning.MessageRecord, len(msgs))
	for _, msg := range msgs {
		out <- msg
	}
	close(out)
	return out
}

// makeMessages builds n qualifying messages with sequential ids and recent
// timestamps.
func makeMessages(n int) []scanning.MessageRecord {
	msgs := make([]scanning.MessageRecord, n)
	now := time.Now().UTC()
	for i := range msgs {
		msgs[i] = scanning.MessageRecord{
			MessageID: msgID(i),
			ChannelID: "chan-1",
			Content:   "hello",
			AuthorID:  "author-1",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

func msgID(i int) string {
	return fmt.Sprintf("msg-%04d", i)
}
