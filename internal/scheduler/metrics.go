package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Metrics tracks refresh activity per report for status output.
type Metrics struct {
	mu sync.RWMutex

	reports map[string]*reportMetrics

	totalAttempts  int64
	totalSuccesses int64
	totalFailures  int64
}

type reportMetrics struct {
	Attempts      int64
	Successes     int64
	Failures      int64
	LastAttemptAt time.Time
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// ReportMetrics is a point-in-time copy of one report's counters.
type ReportMetrics struct {
	ID            string
	Attempts      int64
	Successes     int64
	Failures      int64
	LastAttemptAt time.Time
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Totals summarizes all reports.
type Totals struct {
	Attempts  int64
	Successes int64
	Failures  int64
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		reports: make(map[string]*reportMetrics),
	}
}

func (m *Metrics) getOrCreate(id string) *reportMetrics {
	if rm, ok := m.reports[id]; ok {
		return rm
	}
	rm := &reportMetrics{}
	m.reports[id] = rm
	return rm
}

// RecordAttempt records a refresh fire for id.
func (m *Metrics) RecordAttempt(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreate(id)
	rm.Attempts++
	rm.LastAttemptAt = at
	m.totalAttempts++
}

// RecordSuccess records a refresh that produced a new credential.
func (m *Metrics) RecordSuccess(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreate(id)
	rm.Successes++
	rm.LastSuccessAt = at
	rm.LastError = ""
	m.totalSuccesses++
}

// RecordFailure records a failed refresh.
func (m *Metrics) RecordFailure(id string, at time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreate(id)
	rm.Failures++
	rm.LastFailureAt = at
	if err != nil {
		rm.LastError = err.Error()
	}
	m.totalFailures++
}

// Get returns the counters for one report.
func (m *Metrics) Get(id string) (ReportMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rm, ok := m.reports[id]
	if !ok {
		return ReportMetrics{}, false
	}
	return rm.export(id), true
}

// Snapshot returns all per-report counters sorted by id.
func (m *Metrics) Snapshot() []ReportMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ReportMetrics, 0, len(m.reports))
	for id, rm := range m.reports {
		out = append(out, rm.export(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Totals returns the summary counters.
func (m *Metrics) Totals() Totals {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Totals{
		Attempts:  m.totalAttempts,
		Successes: m.totalSuccesses,
		Failures:  m.totalFailures,
	}
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = make(map[string]*reportMetrics)
	m.totalAttempts = 0
	m.totalSuccesses = 0
	m.totalFailures = 0
}

func (rm *reportMetrics) export(id string) ReportMetrics {
	return ReportMetrics{
		ID:            id,
		Attempts:      rm.Attempts,
		Successes:     rm.Successes,
		Failures:      rm.Failures,
		LastAttemptAt: rm.LastAttemptAt,
		LastSuccessAt: rm.LastSuccessAt,
		LastFailureAt: rm.LastFailureAt,
		LastError:     rm.LastError,
	}
}
