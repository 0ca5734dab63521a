// Package scanning defines the domain model for retrospective misinformation
// scans: the scan session, the messages and batches that flow to the analysis
// backend, and the outcomes and events that flow back.
package scanning

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies a single end-to-end scan invocation for a community and
// a time window. It is created once per orchestration run and is immutable
// after creation.
type Session struct {
	scanID        string
	communityID   string
	initiatorID   string
	cutoff        time.Time
	daysRequested int
	startedAt     time.Time
}

// NewSession creates a session for a scan of the given community covering the
// last daysRequested days. The scan id is globally unique per invocation.
func NewSession(communityID, initiatorID string, daysRequested int) Session {
	now := time.Now().UTC()
	return Session{
		scanID:        uuid.New().String(),
		communityID:   communityID,
		initiatorID:   initiatorID,
		cutoff:        now.AddDate(0, 0, -daysRequested),
		daysRequested: daysRequested,
		startedAt:     now,
	}
}

// ScanID returns the opaque, globally unique identifier for this scan.
func (s Session) ScanID() string { return s.scanID }

// CommunityID returns the community being scanned.
func (s Session) CommunityID() string { return s.communityID }

// InitiatorID returns the moderator who requested the scan.
func (s Session) InitiatorID() string { return s.initiatorID }

// Cutoff returns the timestamp at which backward traversal stops.
// Messages at or before the cutoff are excluded.
func (s Session) Cutoff() time.Time { return s.cutoff }

// DaysRequested returns the size of the requested time window in days.
func (s Session) DaysRequested() int { return s.daysRequested }

// StartedAt returns when the session was created.
func (s Session) StartedAt() time.Time { return s.startedAt }
