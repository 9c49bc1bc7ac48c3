package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embedkeeper/internal/credential"
	"embedkeeper/internal/embed"
	"embedkeeper/internal/session"
	"embedkeeper/internal/testing/mock"
)

var start = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	clock    *mock.MockClock
	fetcher  *mock.Fetcher
	store    *session.Store
	reporter *mock.Reporter
	sched    *Scheduler
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()

	h := &harness{
		clock:    mock.NewMockClock(start),
		fetcher:  mock.NewFetcher(),
		store:    session.NewStore(),
		reporter: &mock.Reporter{},
	}
	h.sched = New(Config{
		Clock:    h.clock,
		Fetcher:  h.fetcher,
		Store:    h.store,
		Reporter: h.reporter,
	})
	t.Cleanup(h.sched.Close)

	entries := make([]session.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, session.Entry{
			Descriptor: embed.ReportDescriptor{ID: id, DatasetID: "ds-" + id, Name: id},
			Credential: embed.Credential{Token: id + "-initial", ExpiresAt: start.Add(time.Minute)},
			EmbedURL:   "https://example.test/" + id,
		})
	}
	h.store.Populate(entries)
	return h
}

func (h *harness) token(t *testing.T, id string) string {
	t.Helper()
	s, ok := h.store.Get(id)
	require.True(t, ok, "session %s missing", id)
	return s.Credential.Token
}

func TestSchedule_ArmsAheadOfExpiry(t *testing.T) {
	h := newHarness(t, "a")

	h.sched.Schedule("a", start.Add(60*time.Second))

	p, ok := h.sched.PendingFor("a")
	require.True(t, ok)
	assert.True(t, p.FireAt.Equal(start.Add(30*time.Second)), "fire at %s", p.FireAt)
	assert.Equal(t, 1, h.clock.PendingTimers())
	assert.Empty(t, h.fetcher.Calls())
}

func TestSchedule_ReplacesExistingPending(t *testing.T) {
	h := newHarness(t, "a")

	h.sched.Schedule("a", start.Add(time.Hour))
	h.sched.Schedule("a", start.Add(2*time.Hour))

	pending := h.sched.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].FireAt.Equal(start.Add(2*time.Hour-SafetyBuffer)))
	assert.Equal(t, 1, h.clock.PendingTimers(), "the replaced timer must be stopped")
}

func TestFire_SuccessUpdatesStoreAndReschedules(t *testing.T) {
	h := newHarness(t, "a")
	h.fetcher.Succeed("a", embed.Credential{Token: "a-2", ExpiresAt: start.Add(30*time.Second + 120*time.Second)})

	h.sched.Schedule("a", start.Add(60*time.Second))
	h.clock.Advance(30 * time.Second)

	assert.Equal(t, []string{"a"}, h.fetcher.Calls())
	assert.Equal(t, "a-2", h.token(t, "a"))

	fireInstant := start.Add(30 * time.Second)
	p, ok := h.sched.PendingFor("a")
	require.True(t, ok, "a new refresh must be armed after success")
	assert.True(t, p.FireAt.Equal(fireInstant.Add(90*time.Second)), "fire at %s", p.FireAt)
	assert.Empty(t, h.reporter.Events())

	m, ok := h.sched.Metrics().Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), m.Attempts)
	assert.Equal(t, int64(1), m.Successes)
}

func TestFire_FailureKeepsCredentialAndDoesNotReschedule(t *testing.T) {
	h := newHarness(t, "a")
	fetchErr := &credential.FetchError{ReportID: "a", Reason: "Internal Server Error", HTTPStatus: 500}
	h.fetcher.Fail("a", fetchErr)

	h.sched.Schedule("a", start.Add(60*time.Second))
	h.clock.Advance(30 * time.Second)

	assert.Equal(t, "a-initial", h.token(t, "a"))
	events := h.reporter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ID)
	assert.ErrorIs(t, events[0].Err, fetchErr)
	assert.Empty(t, h.sched.Pending())
	assert.Equal(t, 0, h.clock.PendingTimers())

	// Nothing else happens later: no automatic retry.
	h.clock.Advance(time.Hour)
	assert.Equal(t, 1, h.fetcher.CallCount("a"))
	assert.Len(t, h.reporter.Events(), 1)
}

func TestSchedule_NonPositiveDelayFiresImmediately(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
	}{
		{"inside safety buffer", start.Add(10 * time.Second)},
		{"exactly at buffer", start.Add(SafetyBuffer)},
		{"already expired", start.Add(-time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "a")
			h.fetcher.Succeed("a", embed.Credential{Token: "a-fresh", ExpiresAt: start.Add(time.Hour)})

			h.sched.Schedule("a", tt.expiresAt)

			require.Eventually(t, func() bool {
				return h.fetcher.CallCount("a") == 1
			}, 2*time.Second, 5*time.Millisecond, "refresh must fire without advancing the clock")
			require.Eventually(t, func() bool {
				_, ok := h.sched.PendingFor("a")
				return ok
			}, 2*time.Second, 5*time.Millisecond)

			assert.Equal(t, "a-fresh", h.token(t, "a"))
			p, _ := h.sched.PendingFor("a")
			assert.True(t, p.FireAt.Equal(start.Add(time.Hour-SafetyBuffer)))
		})
	}
}

func TestFire_StallsAfterRepeatedNearExpiryCredentials(t *testing.T) {
	h := newHarness(t, "a")
	// The endpoint keeps handing out credentials that are already inside the buffer.
	h.fetcher.Succeed("a", embed.Credential{Token: "a-stale", ExpiresAt: start.Add(5 * time.Second)})

	h.sched.Schedule("a", start.Add(5*time.Second))

	require.Eventually(t, func() bool {
		return h.reporter.Count("a") == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, MaxImmediateRefreshes, h.fetcher.CallCount("a"))
	var stalled *RefreshStalledError
	require.ErrorAs(t, h.reporter.Events()[0].Err, &stalled)
	var skipped *SchedulingSkippedError
	assert.ErrorAs(t, stalled, &skipped)
	assert.Empty(t, h.sched.Pending())
	assert.Equal(t, "a-stale", h.token(t, "a"))
}

func TestCancelAll(t *testing.T) {
	t.Run("with zero pending", func(t *testing.T) {
		h := newHarness(t)
		h.sched.CancelAll()
		h.sched.CancelAll()
		assert.Empty(t, h.sched.Pending())
	})

	t.Run("with many pending", func(t *testing.T) {
		h := newHarness(t, "a", "b", "c")
		h.sched.Schedule("a", start.Add(time.Minute))
		h.sched.Schedule("b", start.Add(2*time.Minute))
		h.sched.Schedule("c", start.Add(3*time.Minute))
		require.Len(t, h.sched.Pending(), 3)

		h.sched.CancelAll()

		assert.Empty(t, h.sched.Pending())
		assert.Equal(t, 0, h.clock.PendingTimers())

		h.clock.Advance(time.Hour)
		assert.Empty(t, h.fetcher.Calls(), "cancelled timers must not fire")
	})
}

func TestCancelAll_DiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, "a")
	h.fetcher.Succeed("a", embed.Credential{Token: "a-late", ExpiresAt: start.Add(time.Hour)})
	release := h.fetcher.Gate("a")
	defer release()

	h.sched.Schedule("a", start.Add(time.Minute))

	advanced := make(chan struct{})
	go func() {
		h.clock.Advance(30 * time.Second)
		close(advanced)
	}()

	require.Eventually(t, func() bool { return h.fetcher.CallCount("a") == 1 }, 2*time.Second, 5*time.Millisecond)

	h.sched.CancelAll()
	<-advanced

	assert.Equal(t, "a-initial", h.token(t, "a"), "a fetch racing cancellation must not write")
	assert.Empty(t, h.sched.Pending())
	assert.Empty(t, h.reporter.Events(), "cancellation is not a failure")
}

func TestFire_SessionRemovedBeforeFire(t *testing.T) {
	h := newHarness(t, "a")
	h.fetcher.Succeed("a", embed.Credential{Token: "a-2", ExpiresAt: start.Add(time.Hour)})

	h.sched.Schedule("a", start.Add(time.Minute))
	h.store.Clear()
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.fetcher.Calls())
	assert.Empty(t, h.sched.Pending())
}

func TestFire_SessionRemovedDuringFetch(t *testing.T) {
	h := newHarness(t, "a")
	h.fetcher.Succeed("a", embed.Credential{Token: "a-2", ExpiresAt: start.Add(time.Hour)})
	release := h.fetcher.Gate("a")

	h.sched.Schedule("a", start.Add(time.Minute))

	advanced := make(chan struct{})
	go func() {
		h.clock.Advance(30 * time.Second)
		close(advanced)
	}()
	require.Eventually(t, func() bool { return h.fetcher.CallCount("a") == 1 }, 2*time.Second, 5*time.Millisecond)

	h.store.Clear()
	release()
	<-advanced

	assert.False(t, h.store.Has("a"))
	assert.Empty(t, h.sched.Pending(), "no refresh for a session that no longer exists")
	assert.Empty(t, h.reporter.Events())
}

func TestFire_RepeatedCycles(t *testing.T) {
	h := newHarness(t, "a")
	for i := 1; i <= 5; i++ {
		h.fetcher.Succeed("a", embed.Credential{
			Token:     "a-" + string(rune('0'+i)),
			ExpiresAt: start.Add(time.Duration(i+1) * 10 * time.Minute),
		})
	}

	h.sched.Schedule("a", start.Add(10*time.Minute))
	h.clock.Advance(35 * time.Minute)

	// Fires at 9m30s, 19m30s, 29m30s.
	assert.Equal(t, 3, h.fetcher.CallCount("a"))
	assert.Equal(t, "a-3", h.token(t, "a"))
	p, ok := h.sched.PendingFor("a")
	require.True(t, ok)
	assert.True(t, p.FireAt.Equal(start.Add(40*time.Minute-SafetyBuffer)))
}

func TestFire_IndependentReports(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.fetcher.Fail("a", errors.New("boom"))
	h.fetcher.Succeed("b", embed.Credential{Token: "b-2", ExpiresAt: start.Add(time.Hour)})

	h.sched.Schedule("a", start.Add(time.Minute))
	h.sched.Schedule("b", start.Add(time.Minute))
	h.clock.Advance(30 * time.Second)

	assert.Equal(t, "a-initial", h.token(t, "a"))
	assert.Equal(t, "b-2", h.token(t, "b"))
	assert.Equal(t, 1, h.reporter.Count("a"))
	assert.Equal(t, 0, h.reporter.Count("b"))

	_, aPending := h.sched.PendingFor("a")
	_, bPending := h.sched.PendingFor("b")
	assert.False(t, aPending)
	assert.True(t, bPending)

	totals := h.sched.Metrics().Totals()
	assert.Equal(t, int64(2), totals.Attempts)
	assert.Equal(t, int64(1), totals.Failures)
}

func TestCancel_SingleReport(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.sched.Schedule("a", start.Add(time.Minute))
	h.sched.Schedule("b", start.Add(time.Minute))

	assert.True(t, h.sched.Cancel("a"))
	assert.False(t, h.sched.Cancel("a"))

	pending := h.sched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)
}

func TestClose_RejectsScheduling(t *testing.T) {
	h := newHarness(t, "a")
	h.sched.Close()

	h.sched.Schedule("a", start.Add(time.Hour))
	assert.Empty(t, h.sched.Pending())
	assert.Equal(t, 0, h.clock.PendingTimers())
}
