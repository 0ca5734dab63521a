package scanning

import "time"

// DefaultBatchSize is the maximum number of messages in a non-final batch.
// The final batch of a scan may be smaller.
const DefaultBatchSize = 100

// MessageBatch is a bounded group of qualifying messages handed to the
// analysis backend in a single bus publish. Batch numbers are 1-based and
// contiguous for a given scan id; exactly one batch per scan carries
// IsFinal = true and it is the chronologically last batch sent.
type MessageBatch struct {
	ScanID          string          `json:"scan_id"`
	CommunityID     string          `json:"community_id"`
	InitiatedBy     string          `json:"initiated_by"`
	BatchNumber     int             `json:"batch_number"`
	IsFinal         bool            `json:"is_final"`
	Messages        []MessageRecord `json:"messages"`
	CutoffTimestamp time.Time       `json:"cutoff_timestamp"`
}

// NewMessageBatch builds a batch for the given session. The caller is
// responsible for batch numbering and finality; see the publisher's
// lookahead rules.
func NewMessageBatch(session Session, number int, final bool, messages []MessageRecord) MessageBatch {
	return MessageBatch{
		ScanID:          session.ScanID(),
		CommunityID:     session.CommunityID(),
		InitiatedBy:     session.InitiatorID(),
		BatchNumber:     number,
		IsFinal:         final,
		Messages:        messages,
		CutoffTimestamp: session.Cutoff(),
	}
}
