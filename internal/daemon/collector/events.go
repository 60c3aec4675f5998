package collector

import (
	"context"

	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/internal/preview"
	"github.com/grovetools/storyview/pkg/channel"
)

// EventCollector forwards outbound channel events into the store, each
// followed by a fresh orchestrator status.
type EventCollector struct {
	channel *channel.Channel
	events  chan channel.Event
	status  func() preview.Status
}

// NewEventCollector creates a new EventCollector. The subscription is taken
// here, so events emitted before Run starts are buffered rather than lost.
func NewEventCollector(ch *channel.Channel, status func() preview.Status) *EventCollector {
	return &EventCollector{channel: ch, events: ch.SubscribeBuffered(1024), status: status}
}

// Name returns the collector's name.
func (c *EventCollector) Name() string { return "events" }

// Run forwards events until ctx is done.
func (c *EventCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	events := c.events
	defer c.channel.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !send(ctx, updates, store.Update{Type: store.UpdateEvent, Source: "channel", Payload: ev}) {
				return nil
			}
			if c.status != nil {
				if !send(ctx, updates, store.Update{Type: store.UpdatePreview, Source: "channel", Payload: c.status()}) {
					return nil
				}
			}
		}
	}
}

func send(ctx context.Context, updates chan<- store.Update, u store.Update) bool {
	select {
	case updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
