package scanning

import "context"

// Channel identifies a text channel eligible for traversal.
type Channel struct {
	ID   string
	Name string
}

// ChannelSource abstracts the chat platform's channel and message-history
// APIs so traversal logic is independent of the concrete platform SDK.
type ChannelSource interface {
	// ListTextChannels enumerates the accessible text channels of a community
	// in the platform's enumeration order.
	ListTextChannels(ctx context.Context, communityID string) ([]Channel, error)

	// FetchMessagesBefore returns up to limit messages from the channel that
	// are strictly older than beforeID, newest first. An empty beforeID
	// starts from the most recent message.
	FetchMessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]MessageRecord, error)
}

// StatusReader queries the analysis backend's read-only status endpoint for
// a scan id.
type StatusReader interface {
	// ReadStatus returns the backend's current view of the scan.
	ReadStatus(ctx context.Context, scanID string) (*StatusSnapshot, error)
}

// ProgressFn is invoked by a result waiter when the backend reports
// intermediate progress, and when the stall-warning timer fires with a
// zero-value event to inform the progress UX that things look slow.
type ProgressFn func(evt ScanEvent)

// ResultWaiter blocks until the analysis backend produces a terminal signal
// for the scan, or an applicable timeout elapses. Implementations resolve
// exactly once and release all subscriptions before returning.
type ResultWaiter interface {
	WaitForResult(ctx context.Context, session Session, onProgress ProgressFn) (*Outcome, error)
}

// PublishSummary reports batch-publish health for a completed traversal.
type PublishSummary struct {
	BatchesAttempted int
	BatchesPublished int
	BatchesFailed    int
	MessagesBatched  int
	FinalMarked      bool
}
