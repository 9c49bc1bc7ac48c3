package mock

import "sync"

// ReportedError is one (identifier, error) pair seen by a Reporter.
type ReportedError struct {
	ID  string
	Err error
}

// Reporter records every error sent to the error-reporting channel.
type Reporter struct {
	mu     sync.Mutex
	events []ReportedError
}

// Report implements the lifecycle and scheduler reporter interface.
func (r *Reporter) Report(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ReportedError{ID: id, Err: err})
}

// Events returns a copy of the recorded events.
func (r *Reporter) Events() []ReportedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReportedError, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events were reported for id.
func (r *Reporter) Count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.ID == id {
			n++
		}
	}
	return n
}
