package models

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmdatafocus/shop_inventory/tabular"
)

// processGenerations backs stores made without a shared counter, and any bump
// whose shared counter is unreachable.
var processGenerations = tabular.NewLocalGenerations()

// Session is the per-client state: a cart, one cache token per table and
// whether the schema was already verified.
// The cart is cleared on checkout or explicitly; tokens only grow and are
// drawn from a counter shared by every session, so one session's bump never
// lands on a snapshot cached by another.
type Session struct {
	Id string

	gens           tabular.Generations
	mu             sync.Mutex
	cart           Cart
	tokens         map[string]int64
	schemaVerified bool
	lastSeen       time.Time
}

func newSession(id string, gens tabular.Generations) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{Id: id, gens: gens, tokens: make(map[string]int64), lastSeen: time.Now()}
}

func (s *Session) Token(sheet string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[sheet]
}

// Bump invalidates cached reads of the given sheets for this session.
func (s *Session) Bump(ctx context.Context, sheets ...string) {
	next := make(map[string]int64, len(sheets))
	for _, sh := range sheets {
		n, err := s.gens.Next(ctx, sh)
		if err != nil {
			n, _ = processGenerations.Next(ctx, sh)
		}
		next[sh] = n
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sh, n := range next {
		if n > s.tokens[sh] {
			s.tokens[sh] = n
		} else {
			s.tokens[sh]++
		}
	}
}

func (s *Session) BumpAll(ctx context.Context) {
	names := make([]string, len(Schemas))
	for i, schema := range Schemas {
		names[i] = schema.Name
	}
	s.Bump(ctx, names...)
}

// WithCart runs fn while holding the session lock.
func (s *Session) WithCart(fn func(*Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.cart)
}

func (s *Session) CartItems() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot()
}

// VerifySchema runs migrate the first time it is called successfully for this session.
func (s *Session) VerifySchema(migrate func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaVerified {
		return nil
	}
	if err := migrate(); err != nil {
		return err
	}
	s.schemaVerified = true
	return nil
}

func (s *Session) SchemaVerified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaVerified
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore keeps sessions in memory. Sessions idle longer than ttl are dropped by Sweep.
// Every session it creates draws cache tokens from gens.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	gens     tabular.Generations
}

func NewSessionStore(ttl time.Duration, gens tabular.Generations) *SessionStore {
	if gens == nil {
		gens = processGenerations
	}
	return &SessionStore{sessions: make(map[string]*Session), ttl: ttl, gens: gens}
}

// Get returns the session for id, creating it (with a fresh id when id is empty).
// The bool reports whether the session was newly created.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok && id != "" {
		s.touch(time.Now())
		return s, false
	}
	s := newSession(id, st.gens)
	st.sessions[s.Id] = s
	return s, true
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops idle sessions and returns how many were removed.
func (st *SessionStore) Sweep(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince(now) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
