package store

import (
	"sync"
	"time"

	"github.com/grovetools/storyview/internal/preview"
	"github.com/grovetools/storyview/pkg/channel"
)

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       *State
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New() *Store {
	return &Store{
		state: &State{
			Display: Display{Mode: DisplayNone, Since: time.Now()},
		},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := *s.state
	st.Events = append([]channel.Event(nil), s.state.Events...)
	st.Globals = s.state.Globals.Clone()
	return st
}

// Display returns the current display state.
func (s *Store) Display() Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Display
}

// ApplyUpdate modifies the state and notifies subscribers.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch u.Type {
	case UpdateDisplay:
		if d, ok := u.Payload.(Display); ok {
			if d.Since.IsZero() {
				d.Since = time.Now()
			}
			s.state.Display = d
			u.Payload = d
		}
	case UpdateEvent:
		if ev, ok := u.Payload.(channel.Event); ok {
			s.state.Events = append(s.state.Events, ev)
			if over := len(s.state.Events) - maxEvents; over > 0 {
				s.state.Events = append([]channel.Event(nil), s.state.Events[over:]...)
			}
			if g, ok := ev.Payload.(channel.GlobalsPayload); ok {
				s.state.Globals = g.Globals.Clone()
			}
		}
	case UpdatePreview:
		if st, ok := u.Payload.(preview.Status); ok {
			s.state.Preview = st
		}
	case UpdateSources:
		if src, ok := u.Payload.(Sources); ok {
			s.state.Sources = src
		}
	}

	s.broadcast(u)
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// BroadcastConfigReload tells subscribers that storyview.yml was reloaded.
func (s *Store) BroadcastConfigReload(file string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcast(Update{
		Type:    UpdateConfigReload,
		Source:  "config",
		Payload: file,
	})
}

func (s *Store) broadcast(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}
