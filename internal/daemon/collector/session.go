package collector

import (
	"context"
	"time"

	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/state"
	"github.com/sirupsen/logrus"
)

// SessionCollector persists the selection, args and globals so the next
// `serve --resume` reopens the same story.
type SessionCollector struct {
	path        string
	interval    time.Duration
	queryParams func() map[string]string
	logger      *logrus.Entry
}

// NewSessionCollector creates a new SessionCollector writing to path.
func NewSessionCollector(path string, queryParams func() map[string]string) *SessionCollector {
	return &SessionCollector{
		path:        path,
		interval:    time.Second,
		queryParams: queryParams,
		logger:      logging.NewLogger("session"),
	}
}

// Name returns the collector's name.
func (c *SessionCollector) Name() string { return "session" }

// Run records session changes and writes them at most once per interval.
func (c *SessionCollector) Run(ctx context.Context, st *store.Store, _ chan<- store.Update) error {
	session, err := state.Load(c.path)
	if err != nil {
		c.logger.WithError(err).Warn("Ignoring unreadable state file")
		session = &state.Session{}
	}

	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	dirty := false
	save := func() {
		if !dirty {
			return
		}
		if c.queryParams != nil {
			session.QueryParams = c.queryParams()
		}
		if err := state.Save(c.path, session); err != nil {
			c.logger.WithError(err).Warn("Failed to save session")
			return
		}
		dirty = false
	}

	for {
		select {
		case <-ctx.Done():
			save()
			return nil
		case <-ticker.C:
			save()
		case u, ok := <-sub:
			if !ok {
				return nil
			}
			if ev, isEvent := u.Payload.(channel.Event); isEvent && u.Type == store.UpdateEvent {
				dirty = record(session, ev) || dirty
			}
		}
	}
}

// record applies an event to the session and reports whether it changed.
func record(s *state.Session, ev channel.Event) bool {
	switch p := ev.Payload.(type) {
	case models.Selection:
		if ev.Type != channel.EventCurrentStoryWasSet {
			return false
		}
		sel := p
		s.Selection = &sel
	case channel.ArgsUpdatedPayload:
		s.SetArgs(p.StoryID, p.Args)
	case channel.GlobalsPayload:
		s.Globals = p.Globals.Clone()
	default:
		return false
	}
	return true
}
