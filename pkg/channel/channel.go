package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grovetools/storyview/errors"
)

// Handler processes one inbound command.
type Handler func(ctx context.Context, cmd Command) error

// Channel dispatches inbound commands to handlers and broadcasts outbound
// events to subscribers. It is safe for concurrent use.
type Channel struct {
	mu          sync.RWMutex
	handlers    map[CommandType][]Handler
	subscribers map[chan Event]struct{}
	now         func() time.Time
}

// New creates an empty Channel.
func New() *Channel {
	return &Channel{
		handlers:    make(map[CommandType][]Handler),
		subscribers: make(map[chan Event]struct{}),
		now:         time.Now,
	}
}

// On registers a handler for an inbound command type.
func (c *Channel) On(t CommandType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = append(c.handlers[t], h)
}

// Dispatch runs every handler registered for cmd.Type, in registration order.
// Handlers run on the caller's goroutine.
func (c *Channel) Dispatch(ctx context.Context, cmd Command) error {
	c.mu.RLock()
	handlers := append([]Handler(nil), c.handlers[cmd.Type]...)
	c.mu.RUnlock()

	if len(handlers) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("no handler registered for command %q", cmd.Type))
	}
	for _, h := range handlers {
		if err := h(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Emit broadcasts an event to all subscribers.
func (c *Channel) Emit(t EventType, storyID string, payload interface{}) {
	ev := Event{
		Type:      t,
		StoryID:   storyID,
		Payload:   payload,
		Timestamp: c.now(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			// Non-blocking send to prevent slow listeners from stalling the preview
		}
	}
}

// Subscribe creates a new subscription channel for outbound events.
func (c *Channel) Subscribe() chan Event {
	return c.SubscribeBuffered(256)
}

// SubscribeBuffered creates a subscription with a specific buffer size.
func (c *Channel) SubscribeBuffered(size int) chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Event, size)
	c.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Channel) Unsubscribe(ch chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribers[ch]; !ok {
		return
	}
	delete(c.subscribers, ch)
	close(ch)
}
