// Package state holds the reactive authentication state of one client process.
//
// A Store is fed by exactly one Source (the provider session observer) and
// offers a pull based Snapshot for first render plus a push based Subscribe for
// updates. It depends on no UI framework.
package state

import (
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/rs/zerolog/log"
)

// Listener receives published states. The value is a private copy.
type Listener func(auth.State)

// Publish is handed to a Source to push new states into the store.
type Publish func(auth.State)

// Source is the provider change channel the store attaches to. Subscribe is
// called once when the store is created; the returned detach func is called by Dispose.
type Source interface {
	Subscribe(publish Publish) (detach func())
}

type listener struct {
	fn      Listener
	seen    atomic.Uint64
	removed atomic.Bool
}

// deliver calls fn unless the listener was removed or already saw this version.
func (l *listener) deliver(s auth.State, version uint64) {
	if l.removed.Load() {
		return
	}
	for {
		seen := l.seen.Load()
		if version <= seen {
			return
		}
		if l.seen.CompareAndSwap(seen, version) {
			break
		}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("auth state listener panicked")
		}
	}()
	l.fn(s.Clone())
}

// Store is the single source of truth for auth state in a client process.
type Store struct {
	mu        sync.Mutex
	state     auth.State
	version   uint64
	listeners []*listener
	queue     []auth.State
	draining  bool
	disposed  bool
	detach    func()
}

// New creates a store in the loading state and attaches it to source.
func New(source Source) *Store {
	s := &Store{
		state:   auth.Loading(),
		version: 1,
	}
	if source != nil {
		detach := source.Subscribe(s.publish)
		s.mu.Lock()
		s.detach = detach
		s.mu.Unlock()
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() auth.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn and calls it once with the current state before
// returning. fn is then called for every later state in publication order.
// The returned func unsubscribes; it is safe to call more than once.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	l := &listener{fn: fn}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return func() {}
	}
	s.listeners = append(s.listeners, l)
	current := s.state
	version := s.version
	s.mu.Unlock()

	l.deliver(current, version)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(l) })
	}
}

// Dispose detaches from the source and drops every listener. No state is
// delivered after Dispose returns. Later calls are no-ops.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	for _, l := range s.listeners {
		l.removed.Store(true)
	}
	s.listeners = nil
	s.queue = nil
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
}

func (s *Store) remove(l *listener) {
	l.removed.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// publish queues next and, unless a delivery cycle is already running, drains
// the queue. Publishing from inside a listener therefore never reorders or
// re-enters delivery: the nested state is delivered after the current cycle.
func (s *Store) publish(next auth.State) {
	if err := next.Validate(); err != nil {
		log.Error().Err(err).Str("status", string(next.Status)).Msg("rejected invalid auth state")
		return
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, next.Clone())
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 && !s.disposed {
		current := s.queue[0]
		s.queue = s.queue[1:]
		s.state = current
		s.version++
		version := s.version
		listeners := append([]*listener(nil), s.listeners...)
		s.mu.Unlock()

		for _, l := range listeners {
			l.deliver(current, version)
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
