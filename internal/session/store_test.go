package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"embedkeeper/internal/embed"
)

var baseTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func entry(id string, token string, ttl time.Duration) Entry {
	return Entry{
		Descriptor: embed.ReportDescriptor{
			ID:        id,
			DatasetID: "ds-" + id,
			Name:      "Report " + id,
			Options:   embed.ViewOptions{embed.OptionNavContentPane: true},
		},
		Credential: embed.Credential{Token: token, ExpiresAt: baseTime.Add(ttl)},
		EmbedURL:   "https://app.powerbi.com/reportEmbed?reportId=" + id,
	}
}

func ids(sessions []embed.EmbedSession) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func TestStore_PopulatePreservesOrder(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("c", "tc", time.Hour), entry("a", "ta", time.Hour), entry("b", "tb", time.Hour)})

	assert.Equal(t, []string{"c", "a", "b"}, ids(s.Snapshot()))
	assert.Equal(t, 3, s.Len())
}

func TestStore_PopulateReplacesWholeSet(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("a", "ta", time.Hour), entry("b", "tb", time.Hour)})
	s.Populate([]Entry{entry("c", "tc", time.Hour)})

	assert.Equal(t, []string{"c"}, ids(s.Snapshot()))
	assert.False(t, s.Has("a"))
}

func TestStore_PopulateSkipsDuplicates(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("a", "first", time.Hour), entry("a", "second", time.Hour)})

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Credential.Token)
	assert.Equal(t, 1, s.Len())
}

func TestStore_UpdateCredentialChangesOnlyTarget(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("a", "ta", time.Hour), entry("b", "tb", time.Hour), entry("c", "tc", time.Hour)})
	before := s.Snapshot()

	newCred := embed.Credential{Token: "tb-2", ExpiresAt: baseTime.Add(2 * time.Hour), TokenID: "id-2"}
	require.True(t, s.UpdateCredential("b", newCred))
	after := s.Snapshot()

	// Only b's credential may differ.
	want := make([]embed.EmbedSession, len(before))
	copy(want, before)
	want[1].Credential = newCred

	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("unexpected snapshot change (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids(after), "order must be stable across refreshes")
}

func TestStore_UpdateCredentialUnknownIsNoop(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("a", "ta", time.Hour)})
	before := s.Snapshot()

	assert.False(t, s.UpdateCredential("zzz", embed.Credential{Token: "x"}))
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("snapshot changed (-want +got):\n%s", diff)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("a", "ta", time.Hour)})

	snap := s.Snapshot()
	snap[0].Credential.Token = "tampered"
	snap[0].Options[embed.OptionNavContentPane] = false

	got, _ := s.Get("a")
	assert.Equal(t, "ta", got.Credential.Token)
	assert.True(t, got.Options.Enabled(embed.OptionNavContentPane))
}

func TestStore_PopulateDoesNotAliasCallerOptions(t *testing.T) {
	e := entry("a", "ta", time.Hour)
	s := NewStore()
	s.Populate([]Entry{e})

	e.Descriptor.Options[embed.OptionNavContentPane] = false

	d, ok := s.Descriptor("a")
	require.True(t, ok)
	assert.True(t, d.Options.Enabled(embed.OptionNavContentPane))
	assert.Equal(t, "ds-a", d.DatasetID)
}

func TestStore_ClearAndEmpty(t *testing.T) {
	s := NewStore()
	s.Clear()
	assert.Empty(t, s.Snapshot())

	s.Populate([]Entry{entry("a", "ta", time.Hour)})
	s.Clear()
	s.Clear()
	assert.Empty(t, s.Snapshot())
	assert.False(t, s.Has("a"))
}

func TestStore_SubscribeReceivesEvents(t *testing.T) {
	s := NewStore()
	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Populate([]Entry{entry("a", "ta", time.Hour)})
	s.UpdateCredential("a", embed.Credential{Token: "ta-2"})
	s.UpdateCredential("missing", embed.Credential{Token: "x"})
	s.Clear()

	var got []Event
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	assert.Equal(t, []Event{
		{Type: EventPopulated},
		{Type: EventCredentialUpdated, ID: "a"},
		{Type: EventCleared},
	}, got)

	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStore()
	_, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Populate([]Entry{entry("a", "ta", time.Hour)})
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			s.UpdateCredential("a", embed.Credential{Token: "t"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("UpdateCredential blocked on a full subscriber")
	}
}

func TestStore_UnsubscribeTwice(t *testing.T) {
	s := NewStore()
	events, unsubscribe := s.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)

	// No panic sending after unsubscribe.
	s.Populate([]Entry{entry("a", "ta", time.Hour)})
}

func TestStore_ConcurrentUpdatesToDifferentKeys(t *testing.T) {
	s := NewStore()
	s.Populate([]Entry{entry("a", "ta", time.Hour), entry("b", "tb", time.Hour)})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.UpdateCredential("a", embed.Credential{Token: "a-new"})
		}()
		go func() {
			defer wg.Done()
			s.UpdateCredential("b", embed.Credential{Token: "b-new"})
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	assert.Equal(t, "a-new", a.Credential.Token)
	assert.Equal(t, "b-new", b.Credential.Token)
	assert.Equal(t, []string{"a", "b"}, ids(s.Snapshot()))
}
