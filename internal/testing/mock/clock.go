package mock

import (
	"sort"
	"sync"
	"time"

	"embedkeeper/internal/clock"
)

// MockClock implements clock.Clock with a controllable time value.
// Timers created with AfterFunc fire only when Advance or Set moves the
// clock past their deadline, which lets tests drive refresh cycles without
// waiting for real time to pass.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*MockTimer
	seq     int
}

var _ clock.Clock = (*MockClock)(nil)

// MockTimer is a timer registered on a MockClock.
type MockTimer struct {
	clock   *MockClock
	fireAt  time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewMockClock creates a new mock clock initialized to the given time.
// If t is zero, the clock is initialized to the current time.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Now()
	}
	return &MockClock{current: t}
}

// Now returns the current time according to this mock clock.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AfterFunc registers f to run once the clock reaches Now()+d. A timer with
// d <= 0 runs right away on its own goroutine, like time.AfterFunc(0, f).
func (m *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &MockTimer{clock: m, fireAt: m.current.Add(d), seq: m.seq, f: f}
	if d <= 0 {
		t.fired = true
		go f()
		return t
	}
	m.timers = append(m.timers, t)
	return t
}

// Stop cancels the timer. It returns false if the timer already fired or
// was stopped before.
func (t *MockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.clock.removeLocked(t)
	return true
}

// FireAt returns the instant the timer is due.
func (t *MockTimer) FireAt() time.Time {
	return t.fireAt
}

// Advance moves the clock forward by d, firing due timers in deadline order
// on the calling goroutine. Timers armed by those callbacks fire too when
// they fall inside the window.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.current.Add(d)
	m.mu.Unlock()
	m.runUntil(target)
}

// Set sets the clock to a specific time, firing timers that become due.
func (m *MockClock) Set(t time.Time) {
	m.runUntil(t)
}

// Add is an alias for Advance for API familiarity.
func (m *MockClock) Add(d time.Duration) {
	m.Advance(d)
}

// PendingTimers returns the number of armed timers.
func (m *MockClock) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// NextDeadline returns the earliest armed deadline.
func (m *MockClock) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return time.Time{}, false
	}
	m.sortLocked()
	return m.timers[0].fireAt, true
}

func (m *MockClock) runUntil(target time.Time) {
	for {
		m.mu.Lock()
		m.sortLocked()
		if len(m.timers) == 0 || m.timers[0].fireAt.After(target) {
			m.current = target
			m.mu.Unlock()
			return
		}
		t := m.timers[0]
		m.timers = m.timers[1:]
		t.fired = true
		if t.fireAt.After(m.current) {
			m.current = t.fireAt
		}
		m.mu.Unlock()

		t.f()
	}
}

func (m *MockClock) sortLocked() {
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].fireAt.Equal(m.timers[j].fireAt) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].fireAt.Before(m.timers[j].fireAt)
	})
}

func (m *MockClock) removeLocked(t *MockTimer) {
	for i, candidate := range m.timers {
		if candidate == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}
