// Package core holds the storage-agnostic records produced while inspecting
// a page. Every storage backend consumes these types.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Session is one recording of one debugging target.
type Session struct {
	ID        string     `json:"id"`
	TargetURL string     `json:"targetUrl"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// NewSession starts a session with a fresh random id.
func NewSession(targetURL string, startedAt time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		TargetURL: targetURL,
		StartedAt: startedAt,
	}
}

// End marks the session as finished.
func (s *Session) End(at time.Time) {
	s.EndedAt = &at
}

// Duration is the time between start and end, or zero while running.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// ResetRecord notes that every group of the session was discarded.
type ResetRecord struct {
	SessionID string    `json:"sessionId"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Reset reasons.
const (
	ResetNavigation = "navigation"
	ResetSuspend    = "suspend"
	ResetManual     = "manual"
	// ResetOverflow follows Animation events lost to a full inbox.
	ResetOverflow = "overflow"
)
