package scheduler

import (
	"fmt"
	"time"
)

// SchedulingSkippedError describes a credential whose expiration was already
// inside the safety buffer when it was scheduled. The scheduler never skips
// such a refresh; it fires it immediately and logs this condition.
type SchedulingSkippedError struct {
	ID        string
	ExpiresAt time.Time
	Now       time.Time
}

// Error implements the error interface.
func (e *SchedulingSkippedError) Error() string {
	return fmt.Sprintf("credential for %q expires at %s, within %s of %s; refreshing immediately",
		e.ID, e.ExpiresAt.Format(time.RFC3339), SafetyBuffer, e.Now.Format(time.RFC3339))
}

// RefreshStalledError is reported when the endpoint kept returning
// credentials that were already inside the safety buffer, so every refresh
// fired immediately. The scheduler stops re-arming the report.
type RefreshStalledError struct {
	ID       string
	Attempts int
	Last     *SchedulingSkippedError
}

// Error implements the error interface.
func (e *RefreshStalledError) Error() string {
	return fmt.Sprintf("refresh for %q stalled after %d consecutive immediate refreshes", e.ID, e.Attempts)
}

// Unwrap exposes the last skipped-scheduling condition.
func (e *RefreshStalledError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}
