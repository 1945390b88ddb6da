package session

import (
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Store holds the single in-process session. It has exactly one writer (the
// controller that owns it) and any number of readers.
//
// Every mutation bumps Snapshot.Version and notifies subscribers synchronously,
// after the internal lock has been released, so a subscriber may read the
// store from inside its callback.
type Store struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	current Snapshot

	subMu  sync.Mutex
	nextID uint64
	subs   []*Subscription
}

// Subscription is a scoped registration returned by [Store.Subscribe].
// Close releases it; Close is idempotent.
type Subscription struct {
	id    uint64
	fn    func(Snapshot)
	store *Store
	once  sync.Once
}

// NewStore returns a store in [StateUnknown] with Loading set. A nil clock
// selects the real clock.
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock: clock,
		current: Snapshot{
			State:     StateUnknown,
			Loading:   true,
			UpdatedAt: clock.Now().UTC(),
		},
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// SetAuthenticated replaces the profile and identity handle and moves the
// session to [StateAuthenticated]. A nil identity keeps the previous handle.
func (s *Store) SetAuthenticated(profile Profile, identity *IdentityUser) Snapshot {
	return s.mutate(func(cur *Snapshot) {
		p := profile
		cur.Profile = &p
		cur.State = StateAuthenticated
		cur.Stale = false
		if identity != nil {
			id := *identity
			cur.Identity = &id
		}
	})
}

// SetIdentity replaces only the identity handle. It never changes State:
// the identity provider cannot authenticate a session on its own.
func (s *Store) SetIdentity(identity *IdentityUser) Snapshot {
	return s.mutate(func(cur *Snapshot) {
		if identity == nil {
			cur.Identity = nil
			return
		}
		id := *identity
		cur.Identity = &id
	})
}

// MarkStale flags the profile as out of date without clearing it.
func (s *Store) MarkStale() Snapshot {
	return s.mutate(func(cur *Snapshot) {
		if cur.Profile != nil {
			cur.Stale = true
		}
	})
}

// Clear drops profile and identity and moves the session to [StateAnonymous].
func (s *Store) Clear() Snapshot {
	return s.mutate(func(cur *Snapshot) {
		cur.Profile = nil
		cur.Identity = nil
		cur.Stale = false
		cur.State = StateAnonymous
	})
}

// Resolve applies a reconciliation outcome and clears Loading in one
// mutation. A nil profile ends [StateAnonymous]. Otherwise the session becomes
// [StateAuthenticated]; the identity handle is kept only when it belongs to the
// same email as profile, so a backend user switch never carries the previous
// user's handle.
func (s *Store) Resolve(profile *Profile) Snapshot {
	return s.mutate(func(cur *Snapshot) {
		cur.Loading = false
		cur.Stale = false
		if profile == nil {
			cur.Profile = nil
			cur.Identity = nil
			cur.State = StateAnonymous
			return
		}
		p := *profile
		cur.Profile = &p
		cur.State = StateAuthenticated
		if cur.Identity != nil && !strings.EqualFold(cur.Identity.Email, p.Email) {
			cur.Identity = nil
		}
	})
}

// Subscribe registers fn for every subsequent mutation. fn runs on the
// writer's goroutine.
func (s *Store) Subscribe(fn func(Snapshot)) *Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	sub := &Subscription{id: s.nextID, fn: fn, store: s}
	s.subs = append(s.subs, sub)
	return sub
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// Close removes the subscription from its store.
func (sub *Subscription) Close() {
	if sub == nil || sub.store == nil {
		return
	}
	sub.once.Do(func() {
		sub.store.remove(sub.id)
	})
}

func (s *Store) remove(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Store) mutate(apply func(*Snapshot)) Snapshot {
	s.mu.Lock()
	apply(&s.current)
	s.stampLocked()
	snap := s.current.clone()
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

func (s *Store) stampLocked() {
	s.current.Version++
	s.current.UpdatedAt = s.clock.Now().UTC()
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		if sub.fn != nil {
			sub.fn(snap.clone())
		}
	}
}
