package scanning

// ScanStatus represents the overall state of a scan as reported to the
// requester.
type ScanStatus string

const (
	// ScanStatusPending indicates a scan has been created but not yet started.
	ScanStatusPending ScanStatus = "pending"

	// ScanStatusInProgress indicates the analysis backend is still working.
	ScanStatusInProgress ScanStatus = "in_progress"

	// ScanStatusCompleted indicates the scan finished and all batches reached
	// the backend.
	ScanStatusCompleted ScanStatus = "completed"

	// ScanStatusFailed indicates the scan could not produce results.
	ScanStatusFailed ScanStatus = "failed"

	// ScanStatusPartial indicates results arrived but some batches failed to
	// publish, so they may be incomplete.
	ScanStatusPartial ScanStatus = "partial"

	// ScanStatusTimeout indicates no terminal signal arrived within the
	// configured wait limits.
	ScanStatusTimeout ScanStatus = "timeout"
)

func (s ScanStatus) String() string { return string(s) }

// Terminal reports whether the status is a terminal backend state.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// Outcome is the final result of a scan orchestration run, merging
// batch-publish health with the terminal event or poll result.
type Outcome struct {
	Status          ScanStatus       `json:"status"`
	MessagesScanned int              `json:"messages_scanned"`
	MessagesFlagged int              `json:"messages_flagged"`
	FlaggedMessages []FlaggedMessage `json:"flagged_messages,omitempty"`
	WarningMessage  string           `json:"warning_message,omitempty"`
}

// StatusSnapshot is the analysis backend's view of a scan as reported by its
// status endpoint.
type StatusSnapshot struct {
	Status          ScanStatus       `json:"status"`
	MessagesScanned int              `json:"messages_scanned"`
	Included        []FlaggedMessage `json:"included"`
}

// OutcomeFromSnapshot converts a backend status snapshot into a scan outcome.
func OutcomeFromSnapshot(snap StatusSnapshot) *Outcome {
	return &Outcome{
		Status:          snap.Status,
		MessagesScanned: snap.MessagesScanned,
		MessagesFlagged: len(snap.Included),
		FlaggedMessages: snap.Included,
	}
}
