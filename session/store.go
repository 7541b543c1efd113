// Package session holds the process-wide access token. It is the single
// owner of the current session value; everyone else reads through it.
package session

import "sync"

// Snapshot is the observable state of the store at one generation
type Snapshot struct {
	AccessToken string
	Present     bool
	Generation  uint64
}

// Store is an in-memory, single-writer credential store. The zero value is
// not usable, use NewStore.
type Store struct {
	mu          sync.RWMutex
	accessToken string
	present     bool
	generation  uint64

	subMu     sync.Mutex
	nextSubID int
	subs      []subscriber
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

func NewStore() *Store {
	return &Store{}
}

// Set replaces the current session. Every later Get returns accessToken.
func (s *Store) Set(accessToken string) {
	s.mu.Lock()
	snap := s.commitLocked(accessToken, true)
	s.mu.Unlock()
	s.notify(snap)
}

// CompareAndSet commits accessToken only when nothing else has been committed
// since generation gen was observed.
func (s *Store) CompareAndSet(gen uint64, accessToken string) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	snap := s.commitLocked(accessToken, true)
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// Get returns the current access token, ok is false when there is no session
func (s *Store) Get() (accessToken string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.present
}

// Clear drops the session. The generation still advances when the store is
// already empty so that in-flight operations started before the call are
// discarded on completion.
func (s *Store) Clear() {
	s.mu.Lock()
	snap := s.commitLocked("", false)
	s.mu.Unlock()
	s.notify(snap)
}

// CompareAndClear drops the session only when nothing else has been committed
// since generation gen was observed.
func (s *Store) CompareAndClear(gen uint64) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	snap := s.commitLocked("", false)
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// Generation is bumped on every Set, successful CompareAndSet and Clear
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{AccessToken: s.accessToken, Present: s.present, Generation: s.generation}
}

// Subscribe registers fn to be called after every committed change. Calls are
// made outside the store lock, so fn may read the store. Concurrent commits
// can deliver snapshots out of order; compare Generation to drop stale ones.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) commitLocked(accessToken string, present bool) Snapshot {
	s.accessToken = accessToken
	s.present = present
	s.generation++
	return Snapshot{AccessToken: s.accessToken, Present: s.present, Generation: s.generation}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}
