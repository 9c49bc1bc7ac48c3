package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"embedkeeper/internal/clock"
	"embedkeeper/internal/credential"
	"embedkeeper/internal/embed"
	"embedkeeper/pkg/logging"
)

const (
	// SafetyBuffer is subtracted from a credential's expiration so the
	// refresh lands before the token actually expires.
	SafetyBuffer = 30 * time.Second

	// MaxImmediateRefreshes bounds how many refreshes in a row may fire
	// immediately because the endpoint returned near-expiry credentials.
	MaxImmediateRefreshes = 3
)

// Reporter receives every refresh failure, keyed by report identifier.
type Reporter interface {
	Report(id string, err error)
}

// SessionStore is the part of the session store the scheduler needs.
type SessionStore interface {
	Descriptor(id string) (embed.ReportDescriptor, bool)
	UpdateCredential(id string, cred embed.Credential) bool
}

// Config wires a Scheduler to its collaborators. Clock and Metrics are
// optional.
type Config struct {
	Clock    clock.Clock
	Fetcher  credential.Fetcher
	Store    SessionStore
	Reporter Reporter
	Metrics  *Metrics
}

// pendingRefresh is the bookkeeping record behind an embed.PendingRefresh.
type pendingRefresh struct {
	id     string
	fireAt time.Time
	timer  clock.Timer
}

// Scheduler keeps at most one pending refresh per report and fires it
// SafetyBuffer ahead of the credential's expiration.
//
// Per report: Unscheduled -> Pending -> fired. A successful fire writes the
// new credential and re-arms (Pending again); a failed fire reports the
// error and leaves the report Unscheduled. CancelAll returns every report to
// Unscheduled.
//
// A report whose refreshes keep returning credentials inside SafetyBuffer is
// left Unscheduled after MaxImmediateRefreshes immediate fires, even though
// it stays in the session set with a known expiration. The stall is reported
// as a RefreshStalledError; only a new Schedule, Initialize or Reload re-arms
// it.
type Scheduler struct {
	mu sync.Mutex

	clock    clock.Clock
	fetcher  credential.Fetcher
	store    SessionStore
	reporter Reporter
	metrics  *Metrics

	pending map[string]*pendingRefresh

	// immediate counts consecutive near-expiry refresh results per report.
	immediate map[string]int

	// epoch changes on every CancelAll; a fire started in an older epoch
	// drops its result.
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:     cfg.Clock,
		fetcher:   cfg.Fetcher,
		store:     cfg.Store,
		reporter:  cfg.Reporter,
		metrics:   cfg.Metrics,
		pending:   make(map[string]*pendingRefresh),
		immediate: make(map[string]int),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Schedule arms the refresh for id, replacing any pending one. The refresh
// fires at expiresAt-SafetyBuffer, or immediately when that instant has
// already passed.
func (s *Scheduler) Schedule(id string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(id, expiresAt)
}

func (s *Scheduler) scheduleLocked(id string, expiresAt time.Time) {
	if s.closed {
		logging.Debug("Scheduler", "Ignoring schedule for %s on closed scheduler", id)
		return
	}

	if existing, ok := s.pending[id]; ok {
		existing.timer.Stop()
		delete(s.pending, id)
	}

	now := s.clock.Now()
	fireAt := expiresAt.Add(-SafetyBuffer)
	delay := fireAt.Sub(now)

	if delay <= 0 {
		skipped := &SchedulingSkippedError{ID: id, ExpiresAt: expiresAt, Now: now}
		logging.Warn("Scheduler", "%s", skipped.Error())
		fireAt = now
		delay = 0
	}

	p := &pendingRefresh{id: id, fireAt: fireAt}
	s.pending[id] = p
	p.timer = s.clock.AfterFunc(delay, func() { s.fire(p) })

	logging.Debug("Scheduler", "Armed refresh for %s at %s (in %s)", id, fireAt.Format(time.RFC3339), delay)
}

// fire runs one refresh. It holds the lock while applying the result so a
// concurrent CancelAll either happens before (result dropped) or after
// (result applied, then cancelled).
func (s *Scheduler) fire(p *pendingRefresh) {
	s.mu.Lock()
	if current, ok := s.pending[p.id]; !ok || current != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, p.id)
	epoch := s.epoch
	ctx := s.ctx
	s.mu.Unlock()

	desc, ok := s.store.Descriptor(p.id)
	if !ok {
		logging.Debug("Scheduler", "Report %s left the session set before its refresh fired", p.id)
		return
	}

	s.metrics.RecordAttempt(p.id, s.clock.Now())
	logging.Debug("Scheduler", "Refreshing credential for %s", p.id)

	cred, err := s.fetcher.Fetch(ctx, desc)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		logging.Debug("Scheduler", "Discarding refresh result for %s after cancellation", p.id)
		return
	}

	now := s.clock.Now()
	if err != nil {
		delete(s.immediate, p.id)
		s.mu.Unlock()

		s.metrics.RecordFailure(p.id, now, err)
		logging.Error("Scheduler", err, "Refresh for %s failed; keeping previous credential", p.id)
		s.report(p.id, err)
		return
	}

	if !s.store.UpdateCredential(p.id, cred) {
		delete(s.immediate, p.id)
		s.mu.Unlock()
		return
	}
	s.metrics.RecordSuccess(p.id, now)

	if cred.ExpiredWithin(now, SafetyBuffer) {
		s.immediate[p.id]++
		if n := s.immediate[p.id]; n >= MaxImmediateRefreshes {
			delete(s.immediate, p.id)
			s.mu.Unlock()

			stalled := &RefreshStalledError{
				ID:       p.id,
				Attempts: n,
				Last:     &SchedulingSkippedError{ID: p.id, ExpiresAt: cred.ExpiresAt, Now: now},
			}
			logging.Error("Scheduler", stalled, "Giving up on %s; credential left in place", p.id)
			s.report(p.id, stalled)
			return
		}
	} else {
		delete(s.immediate, p.id)
	}

	s.scheduleLocked(p.id, cred.ExpiresAt)
	s.mu.Unlock()

	logging.Info("Scheduler", "Refreshed credential for %s, expires %s", p.id, cred.ExpiresAt.Format(time.RFC3339))
}

func (s *Scheduler) report(id string, err error) {
	if s.reporter != nil {
		s.reporter.Report(id, err)
	}
}

// Cancel removes the pending refresh for one report, if any.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, id)
	delete(s.immediate, id)
	return true
}

// CancelAll stops every pending refresh and invalidates fires already in
// progress. In-flight fetches see their context cancelled and their results
// are discarded. Safe to call repeatedly.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
}

func (s *Scheduler) cancelAllLocked() {
	n := len(s.pending)
	for _, p := range s.pending {
		p.timer.Stop()
	}
	s.pending = make(map[string]*pendingRefresh)
	s.immediate = make(map[string]int)

	s.epoch++
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if n > 0 {
		logging.Debug("Scheduler", "Cancelled %d pending refreshes", n)
	}
}

// Close cancels everything and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
	s.closed = true
}

// Pending returns the pending refreshes sorted by report id.
func (s *Scheduler) Pending() []embed.PendingRefresh {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]embed.PendingRefresh, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, embed.PendingRefresh{ID: p.id, FireAt: p.fireAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingFor returns the pending refresh for id.
func (s *Scheduler) PendingFor(id string) (embed.PendingRefresh, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return embed.PendingRefresh{}, false
	}
	return embed.PendingRefresh{ID: p.id, FireAt: p.fireAt}, true
}

// Metrics returns the scheduler's refresh counters.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}
