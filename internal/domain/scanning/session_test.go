package scanning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	before := time.Now().UTC()
	session := NewSession("guild-1", "mod-1", 14)
	after := time.Now().UTC()

	require.NotEmpty(t, session.ScanID())
	assert.Equal(t, "guild-1", session.CommunityID())
	assert.Equal(t, "mod-1", session.InitiatorID())
	assert.Equal(t, 14, session.DaysRequested())

	// The cutoff sits exactly daysRequested days behind the session start.
	wantLow := before.AddDate(0, 0, -14)
	wantHigh := after.AddDate(0, 0, -14)
	assert.False(t, session.Cutoff().Before(wantLow))
	assert.False(t, session.Cutoff().After(wantHigh))
}

func TestNewSession_UniqueScanIDs(t *testing.T) {
	a := NewSession("guild-1", "mod-1", 7)
	b := NewSession("guild-1", "mod-1", 7)
	assert.NotEqual(t, a.ScanID(), b.ScanID())
}

func TestNewMessageBatch(t *testing.T) {
	session := NewSession("guild-1", "mod-1", 7)
	msgs := []MessageRecord{{MessageID: "m1", Content: "x"}}

	batch := NewMessageBatch(session, 2, true, msgs)
	assert.Equal(t, session.ScanID(), batch.ScanID)
	assert.Equal(t, "guild-1", batch.CommunityID)
	assert.Equal(t, "mod-1", batch.InitiatedBy)
	assert.Equal(t, 2, batch.BatchNumber)
	assert.True(t, batch.IsFinal)
	assert.True(t, batch.CutoffTimestamp.Equal(session.Cutoff()))
	assert.Len(t, batch.Messages, 1)
}
