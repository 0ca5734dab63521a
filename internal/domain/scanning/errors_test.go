package scanning

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsWaitTimeout(t *testing.T) {
	silence := &SilenceTimeoutError{Window: 60 * time.Second}
	maxWait := &MaxWaitTimeoutError{Window: 300 * time.Second}

	assert.True(t, IsWaitTimeout(silence))
	assert.True(t, IsWaitTimeout(maxWait))
	assert.True(t, IsWaitTimeout(fmt.Errorf("wrapped: %w", silence)))
	assert.False(t, IsWaitTimeout(&ScanFailedError{Reason: "boom"}))
	assert.False(t, IsWaitTimeout(errors.New("unrelated")))
	assert.False(t, IsWaitTimeout(nil))
}

func TestTimeoutErrorMessagesAreDistinguishable(t *testing.T) {
	silence := &SilenceTimeoutError{Window: 60 * time.Second}
	maxWait := &MaxWaitTimeoutError{Window: 300 * time.Second}

	assert.Equal(t, "no activity for 60 seconds", silence.Error())
	assert.Equal(t, "timed out after 300 seconds total", maxWait.Error())
}

func TestScanFailedError(t *testing.T) {
	assert.Equal(t, "analysis backend reported failure", (&ScanFailedError{}).Error())
	assert.Equal(t, "analysis backend reported failure: model crashed",
		(&ScanFailedError{Reason: "model crashed"}).Error())
}

func TestScanStatusTerminal(t *testing.T) {
	assert.True(t, ScanStatusCompleted.Terminal())
	assert.True(t, ScanStatusFailed.Terminal())
	assert.False(t, ScanStatusPending.Terminal())
	assert.False(t, ScanStatusInProgress.Terminal())
	assert.False(t, ScanStatusPartial.Terminal())
	assert.False(t, ScanStatusTimeout.Terminal())
}

func TestOutcomeFromSnapshot(t *testing.T) {
	snap := StatusSnapshot{
		Status:          ScanStatusCompleted,
		MessagesScanned: 40,
		Included:        []FlaggedMessage{{MessageID: "m1"}, {MessageID: "m2"}},
	}

	outcome := OutcomeFromSnapshot(snap)
	assert.Equal(t, ScanStatusCompleted, outcome.Status)
	assert.Equal(t, 40, outcome.MessagesScanned)
	assert.Equal(t, 2, outcome.MessagesFlagged)
	assert.Len(t, outcome.FlaggedMessages, 2)
}

func TestOutcomeFromResultEvent(t *testing.T) {
	evt := ScanEvent{
		ScanID:          "scan-1",
		MessagesScanned: 99,
		MessagesFlagged: 1,
		FlaggedMessages: []FlaggedMessage{{MessageID: "m1", MatchScore: 0.9}},
	}

	outcome := OutcomeFromResultEvent(evt)
	assert.Equal(t, ScanStatusCompleted, outcome.Status)
	assert.Equal(t, 99, outcome.MessagesScanned)
	assert.Equal(t, 1, outcome.MessagesFlagged)
}
