package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lock is a time-bounded, single-holder exclusivity grant on a drawing's
// metadata edits. One row per locked drawing; no row means unlocked.
type Lock struct {
	DrawingID  uuid.UUID `json:"drawing_id"`
	UserID     string    `json:"user_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LiveAt reports whether the lock is still in force at the given instant.
// This is the single authoritative liveness check: now < expires_at.
func (l Lock) LiveAt(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// Remaining returns how much of the TTL is left at the given instant.
// Zero when the lock has expired.
func (l Lock) Remaining(now time.Time) time.Duration {
	if !l.LiveAt(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}
