package collector

import (
	"context"

	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/watcher"
	"github.com/sirupsen/logrus"
)

// Reloader rebuilds preview sources after they changed on disk.
type Reloader interface {
	// ReloadSources applies one batch of changes and reports the resulting sources.
	ReloadSources(ctx context.Context, change watcher.Change) (store.Sources, error)
}

// SourceCollector watches story modules, the index and the configuration and
// hands each settled batch of changes to a Reloader.
type SourceCollector struct {
	opts     watcher.Options
	reloader Reloader
	logger   *logrus.Entry
}

// NewSourceCollector creates a new SourceCollector.
func NewSourceCollector(opts watcher.Options, reloader Reloader) *SourceCollector {
	return &SourceCollector{
		opts:     opts,
		reloader: reloader,
		logger:   logging.NewLogger("sources"),
	}
}

// Name returns the collector's name.
func (c *SourceCollector) Name() string { return "sources" }

// Run watches until ctx is done.
func (c *SourceCollector) Run(ctx context.Context, st *store.Store, updates chan<- store.Update) error {
	w, err := watcher.New(c.opts, func(change watcher.Change) {
		sources, err := c.reloader.ReloadSources(ctx, change)
		if err != nil {
			c.logger.WithError(err).Error("Failed to reload sources")
			sources.Error = err.Error()
		}
		send(ctx, updates, store.Update{Type: store.UpdateSources, Source: "sources", Payload: sources})
		if change.Config {
			st.BroadcastConfigReload("storyview.yml")
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	w.Start(ctx)
	return nil
}
