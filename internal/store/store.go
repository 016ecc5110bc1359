package store

import "sync"

// Subscriber observes committed transitions. It receives the state that was
// just installed together with the state it replaced.
type Subscriber func(next, prev State)

// Store serializes access to the session state. Apply computes the next state
// under the lock, then notifies subscribers after releasing it, so a
// subscriber is free to re-enter Apply from inside its notification (response
// merges triggering further fetches rely on this).
type Store struct {
	mu    sync.Mutex
	state State
	subs  []Subscriber
}

// New creates a store holding the initial session state.
func New() *Store {
	return NewWith(NewState())
}

// NewWith creates a store seeded with a prepared state.
func NewWith(state State) *Store {
	return &Store{state: state}
}

// Get returns the current snapshot.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every subsequent transition. Subscribers are
// notified in registration order, synchronously with the Apply that committed
// the transition.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Apply atomically replaces the state with fn(current) and notifies
// subscribers with the (next, prev) pair.
func (s *Store) Apply(fn func(State) State) {
	s.mu.Lock()
	prev := s.state
	next := fn(prev)
	s.state = next
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next, prev)
	}
}
