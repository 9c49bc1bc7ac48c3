package session

import (
	"sync"

	"embedkeeper/internal/embed"
	"embedkeeper/pkg/logging"
)

// subscriberBuffer is the per-subscriber event buffer. Sends never block; a
// subscriber that falls behind still has a queued event telling it to re-read.
const subscriberBuffer = 16

// EventType classifies a store change.
type EventType string

const (
	EventPopulated         EventType = "populated"
	EventCredentialUpdated EventType = "credential_updated"
	EventCleared           EventType = "cleared"
)

// Event notifies subscribers that the snapshot changed.
type Event struct {
	Type EventType
	// ID is set for EventCredentialUpdated.
	ID string
}

// Entry is one populated session before it enters the store.
type Entry struct {
	Descriptor embed.ReportDescriptor
	Credential embed.Credential
	EmbedURL   string
}

type record struct {
	descriptor embed.ReportDescriptor
	session    embed.EmbedSession
}

// Store is the authoritative in-memory mapping from report identifier to
// its embed session. All mutation goes through Populate, UpdateCredential
// and Clear.
type Store struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*record

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:     make(map[string]*record),
		subscribers: make(map[int]chan Event),
	}
}

// Populate replaces the whole mapping. Readers see either the old or the new
// set, never a mix. Entry order becomes snapshot order. A repeated
// identifier keeps its first entry.
func (s *Store) Populate(entries []Entry) {
	order := make([]string, 0, len(entries))
	records := make(map[string]*record, len(entries))

	for _, e := range entries {
		id := e.Descriptor.ID
		if _, dup := records[id]; dup {
			logging.Warn("SessionStore", "Ignoring duplicate entry for report %s", id)
			continue
		}
		desc := e.Descriptor
		desc.Options = desc.Options.Clone()
		order = append(order, id)
		records[id] = &record{
			descriptor: desc,
			session: embed.EmbedSession{
				ID:         id,
				Name:       e.Descriptor.Name,
				EmbedURL:   e.EmbedURL,
				Credential: e.Credential,
				Options:    e.Descriptor.Options.Clone(),
			},
		}
	}

	s.mu.Lock()
	s.order = order
	s.records = records
	s.mu.Unlock()

	logging.Debug("SessionStore", "Populated %d sessions", len(order))
	s.notify(Event{Type: EventPopulated})
}

// UpdateCredential replaces the credential of one session and leaves every
// other field and session untouched. It returns false, and changes nothing,
// when id is not in the store.
func (s *Store) UpdateCredential(id string, cred embed.Credential) bool {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok {
		rec.session.Credential = cred
	}
	s.mu.Unlock()

	if !ok {
		logging.Debug("SessionStore", "Dropping credential update for unknown report %s", id)
		return false
	}

	s.notify(Event{Type: EventCredentialUpdated, ID: id})
	return true
}

// Clear removes every session.
func (s *Store) Clear() {
	s.mu.Lock()
	hadRecords := len(s.order) > 0
	s.order = nil
	s.records = make(map[string]*record)
	s.mu.Unlock()

	if hadRecords {
		s.notify(Event{Type: EventCleared})
	}
}

// Snapshot returns copies of all sessions in descriptor order.
func (s *Store) Snapshot() []embed.EmbedSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]embed.EmbedSession, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].session.Clone())
	}
	return out
}

// Get returns a copy of one session.
func (s *Store) Get(id string) (embed.EmbedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return embed.EmbedSession{}, false
	}
	return rec.session.Clone(), true
}

// Descriptor returns the descriptor a session was populated from.
func (s *Store) Descriptor(id string) (embed.ReportDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return embed.ReportDescriptor{}, false
	}
	d := rec.descriptor
	d.Options = d.Options.Clone()
	return d, true
}

// Has reports whether id is present.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Subscribe registers for change events. The returned function unsubscribes
// and closes the channel; calling it twice is safe.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			logging.Debug("SessionStore", "Subscriber buffer full, dropping %s event", ev.Type)
		}
	}
}
