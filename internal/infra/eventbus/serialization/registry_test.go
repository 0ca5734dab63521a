package serialization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factsentry/factsentry/internal/domain/scanning"
)

func TestMessageBatchRoundTrip(t *testing.T) {
	cutoff := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	batch := scanning.MessageBatch{
		ScanID:      "scan-1",
		CommunityID: "guild-1",
		InitiatedBy: "mod-1",
		BatchNumber: 3,
		IsFinal:     true,
		Messages: []scanning.MessageRecord{
			{
				MessageID:         "m1",
				ChannelID:         "chan-1",
				Content:           "look at this",
				AuthorID:          "author-1",
				AuthorDisplayName: "Alice",
				Timestamp:         cutoff.Add(48 * time.Hour),
				AttachmentURLs:    []string{"https://cdn.example/a.png"},
				EmbedText:         "headline",
			},
		},
		CutoffTimestamp: cutoff,
	}

	data, err := SerializePayload(scanning.EventTypeScanBatch, batch)
	require.NoError(t, err)

	decoded, err := DeserializePayload(scanning.EventTypeScanBatch, data)
	require.NoError(t, err)
	require.Equal(t, batch, decoded)
}

func TestScanEventRoundTripForAllWaiterTypes(t *testing.T) {
	evt := scanning.ScanEvent{
		EventType:       "scan_result",
		ScanID:          "scan-9",
		MessagesScanned: 1200,
		MessagesFlagged: 3,
		FlaggedMessages: []scanning.FlaggedMessage{
			{MessageID: "m1", MatchScore: 0.95, MatchedClaim: "claim", MatchedSource: "source"},
		},
	}

	for _, et := range scanning.WaiterEventTypes() {
		data, err := SerializePayload(et, evt)
		require.NoError(t, err, "event type %s", et)

		decoded, err := DeserializePayload(et, data)
		require.NoError(t, err, "event type %s", et)
		assert.Equal(t, evt, decoded)
	}
}

func TestDeserializeScanEventRequiresScanID(t *testing.T) {
	_, err := DeserializePayload(scanning.EventTypeScanResult, []byte(`{"event_type":"scan_result"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "scan_id")
}

func TestUnregisteredEventTypeFails(t *testing.T) {
	_, err := SerializePayload("UnknownEvent", struct{}{})
	require.Error(t, err)

	_, err = DeserializePayload("UnknownEvent", []byte("{}"))
	require.Error(t, err)
}

func TestSerializeRejectsWrongPayloadType(t *testing.T) {
	_, err := SerializePayload(scanning.EventTypeScanBatch, "not a batch")
	require.Error(t, err)

	_, err = SerializePayload(scanning.EventTypeScanResult, 42)
	require.Error(t, err)
}

func TestDeserializeMalformedJSON(t *testing.T) {
	_, err := DeserializePayload(scanning.EventTypeScanBatch, []byte("{nope"))
	require.Error(t, err)
}
