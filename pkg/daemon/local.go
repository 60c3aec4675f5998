package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/adapter/snapshot"
	"github.com/grovetools/storyview/internal/daemon/engine"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/profiling"
	"github.com/grovetools/storyview/version"
	"github.com/sirupsen/logrus"
)

// LocalClient implements Client by running the preview in-process.
// This is used when the daemon is not running. The preview is initialized
// on first use and lives until Close.
type LocalClient struct {
	cfg    *config.Config
	logger *logrus.Entry

	once      sync.Once
	engine    *engine.Engine
	initErr   error
	startedAt time.Time
}

// NewLocalClient creates a new LocalClient for cfg.
func NewLocalClient(cfg *config.Config, logger *logrus.Entry) *LocalClient {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = logrus.NewEntry(l)
	}
	return &LocalClient{cfg: cfg, logger: logger}
}

// preview initializes the in-process engine once. The returned error is the
// initialization failure, which is also reflected in the engine's display.
func (c *LocalClient) preview(ctx context.Context) (*engine.Engine, error) {
	c.once.Do(func() {
		defer profiling.Start("initialize preview").Stop()
		c.startedAt = time.Now()
		c.engine = engine.New(store.New(), c.cfg, nil, c.logger)
		c.initErr = c.engine.Initialize(ctx)
		c.engine.Preview().Wait()
	})
	return c.engine, c.initErr
}

// GetState returns the state of the in-process preview.
func (c *LocalClient) GetState(ctx context.Context) (*store.State, error) {
	eng, _ := c.preview(ctx)
	st := eng.Store().Get()
	return &st, nil
}

// Dispatch returns an error: a command sent to a preview that ends with the
// process has no observable effect.
func (c *LocalClient) Dispatch(context.Context, channel.Command) error {
	return errors.DaemonUnavailable("dispatching commands")
}

// Render returns the content of the element in the main area.
func (c *LocalClient) Render(ctx context.Context) (*snapshot.Snapshot, error) {
	eng, err := c.preview(ctx)
	el := eng.View().MainElement()
	if el == nil {
		if err != nil {
			return nil, err
		}
		return nil, errors.NoSelection()
	}
	snap := el.Snapshot()
	return &snap, nil
}

// Extract loads every story in the catalog.
func (c *LocalClient) Extract(ctx context.Context, includeDocsOnly bool) (map[string]*models.Story, error) {
	eng, _ := c.preview(ctx)
	defer profiling.Start("extract").Stop()
	return eng.Preview().Extract(ctx, includeDocsOnly)
}

// GetConfig describes the configuration the in-process preview uses.
func (c *LocalClient) GetConfig(ctx context.Context) (*RunningConfig, error) {
	c.preview(ctx)
	return &RunningConfig{
		ConfigPath:   c.cfg.Path(),
		StoriesDir:   c.cfg.ResolvePath(c.cfg.StoriesDir),
		Index:        c.cfg.Index,
		Watch:        false,
		Debounce:     c.cfg.Debounce(),
		StoryStoreV7: c.cfg.StoryStoreV7(),
		Version:      version.GetInfo().Version,
		StartedAt:    c.startedAt,
	}, nil
}

// StreamState is not supported by LocalClient.
func (c *LocalClient) StreamState(context.Context) (<-chan StreamUpdate, error) {
	return nil, errors.DaemonUnavailable("streaming state")
}

// IsRunning always returns false for LocalClient.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close tears down the in-process preview, if one was started.
func (c *LocalClient) Close() error {
	if c.engine == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.engine.Close(ctx)
}

// Ensure LocalClient implements Client interface.
var _ Client = (*LocalClient)(nil)
