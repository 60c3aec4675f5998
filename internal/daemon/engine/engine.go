// Package engine wires the preview orchestrator to its sources and runs the
// background collectors of the daemon.
package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/internal/adapter/snapshot"
	"github.com/grovetools/storyview/internal/daemon/collector"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/internal/preview"
	"github.com/grovetools/storyview/internal/view"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/csf"
	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/profiling"
	"github.com/grovetools/storyview/pkg/selection"
	pstore "github.com/grovetools/storyview/pkg/store"
	"github.com/grovetools/storyview/pkg/watcher"
	"github.com/sirupsen/logrus"
)

// Engine owns the preview and manages all collectors.
type Engine struct {
	store      *store.Store
	collectors []collector.Collector
	logger     *logrus.Entry

	channel   *channel.Channel
	view      *view.StateView
	renderer  *snapshot.Renderer
	selection *selection.Store
	preview   *preview.Orchestrator

	mu     sync.RWMutex
	cfg    *config.Config
	loader *csf.Loader
}

// New creates an Engine for cfg. spec, when set, replaces the configured
// initial selection.
func New(st *store.Store, cfg *config.Config, spec *models.SelectionSpecifier, logger *logrus.Entry) *Engine {
	if spec == nil {
		spec = cfg.SelectionSpecifier()
	}

	e := &Engine{
		store:     st,
		logger:    logger,
		channel:   channel.New(),
		view:      view.New(st),
		renderer:  snapshot.New(),
		selection: selection.New(spec),
		cfg:       cfg,
		loader:    csf.NewLoader(cfg.ResolvePath(cfg.StoriesDir)),
	}

	e.preview = preview.New(e.channel, e.view, e.selection, pstore.NewStoryStore(e.loader), preview.Options{
		Features: preview.Features{
			StoryStoreV7:      cfg.StoryStoreV7(),
			BreakingChangesV7: cfg.Features.BreakingChangesV7,
		},
		RenderFn:           e.renderer.Story,
		DocsFn:             e.renderer.Docs,
		SlowPrepareWarning: cfg.SlowPrepareWarning(),
		PreloadConcurrency: cfg.Preview.PreloadConcurrency,
	})

	// Subscribe before Initialize so the first events reach the store.
	e.Register(collector.NewEventCollector(e.channel, e.preview.Status))
	if cfg.StateFile != "" {
		e.Register(collector.NewSessionCollector(cfg.ResolvePath(cfg.StateFile), e.selection.QueryParams))
	}
	if cfg.WatchEnabled() {
		e.Register(collector.NewSourceCollector(e.watchOptions(cfg), e))
	}
	return e
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Initialize loads the configured sources and renders the initial selection.
// Entry failures are also visible on the error display.
func (e *Engine) Initialize(ctx context.Context) error {
	defer profiling.Start("initialize").Stop()
	err := e.preview.Initialize(ctx, preview.InitOptions{
		GetProjectAnnotations: e.projectAnnotations,
		GetStoryIndex:         e.storyIndex,
		Loader:                e.Loader(),
	})
	e.publishSources(err)
	return err
}

// Start runs all collectors and blocks until context is canceled.
func (e *Engine) Start(ctx context.Context) {
	updates := make(chan store.Update, 100)
	var wg sync.WaitGroup

	// 1. Start Update Consumer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				e.store.ApplyUpdate(u)
			}
		}
	}()

	// 2. Start Collectors
	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, e.store, updates); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		}(c)
	}

	wg.Wait()
}

// Close tears down the preview.
func (e *Engine) Close(ctx context.Context) error {
	return e.preview.Close(ctx)
}

// ReloadSources implements collector.Reloader.
func (e *Engine) ReloadSources(ctx context.Context, change watcher.Change) (store.Sources, error) {
	defer profiling.Start("reload sources").Stop()
	var newLoader *csf.Loader
	if change.Config {
		cfg, err := config.Load(e.Config().Path())
		if err != nil {
			e.channel.Emit(channel.EventConfigError, "", channel.ErrorPayload{
				Title:   "Configuration error",
				Message: err.Error(),
			})
			return e.sources(err), err
		}
		e.mu.Lock()
		if cfg.ResolvePath(cfg.StoriesDir) != e.loader.Root() {
			e.loader = csf.NewLoader(cfg.ResolvePath(cfg.StoriesDir))
			newLoader = e.loader
			e.logger.WithField("stories_dir", e.loader.Root()).
				Warn("stories_dir changed; restart the daemon to watch the new directory")
		}
		e.cfg = cfg
		e.mu.Unlock()

		if err := e.preview.OnGetProjectAnnotationsChanged(ctx, e.projectAnnotations); err != nil {
			return e.sources(err), err
		}
	}

	if len(change.Modules) == 0 && !change.Index && newLoader == nil {
		return e.sources(nil), nil
	}

	loader := e.Loader()
	for _, m := range change.Modules {
		loader.Invalidate("./" + m)
	}
	idx, err := e.storyIndex(ctx)
	if err != nil {
		return e.sources(err), err
	}
	var replacement pstore.ModuleLoader
	if newLoader != nil {
		replacement = newLoader
	}
	err = e.preview.OnStoriesChanged(ctx, replacement, idx)
	return e.sources(err), err
}

func (e *Engine) projectAnnotations(context.Context) (*models.ProjectAnnotations, error) {
	return e.Config().ProjectAnnotations(), nil
}

// storyIndex reads the external index when one is configured, otherwise
// builds it from the story modules.
func (e *Engine) storyIndex(ctx context.Context) (*index.StoryIndex, error) {
	cfg := e.Config()
	if cfg.Index != "" {
		return index.Load(cfg.ResolvePath(cfg.Index))
	}
	return e.Loader().BuildIndex(ctx, patterns(cfg))
}

func (e *Engine) watchOptions(cfg *config.Config) watcher.Options {
	opts := watcher.Options{
		Root:     cfg.ResolvePath(cfg.StoriesDir),
		Patterns: patterns(cfg),
		Debounce: cfg.Debounce(),
	}
	if path := cfg.Path(); path != "" {
		dir := filepath.Dir(path)
		opts.ConfigFiles = []string{
			path,
			filepath.Join(dir, "storyview.override.yml"),
			filepath.Join(dir, "storyview.override.yaml"),
			filepath.Join(dir, "storyview.override.toml"),
		}
	}
	if cfg.Index != "" {
		opts.IndexFile = cfg.ResolvePath(cfg.Index)
	}
	return opts
}

func patterns(cfg *config.Config) []string {
	if len(cfg.Stories) > 0 {
		return cfg.Stories
	}
	return csf.DefaultPatterns
}

func (e *Engine) sources(err error) store.Sources {
	cfg := e.Config()
	src := store.Sources{
		StoriesDir: cfg.ResolvePath(cfg.StoriesDir),
		Index:      cfg.ResolvePath(cfg.Index),
		LoadedAt:   time.Now(),
	}
	if idx := e.preview.Store().Index(); idx != nil {
		src.Stories = idx.Len()
	}
	if err != nil {
		src.Error = err.Error()
	}
	return src
}

func (e *Engine) publishSources(err error) {
	e.store.ApplyUpdate(store.Update{Type: store.UpdateSources, Source: "engine", Payload: e.sources(err)})
}

// Dispatch sends a command to the preview.
func (e *Engine) Dispatch(ctx context.Context, cmd channel.Command) error {
	return e.channel.Dispatch(ctx, cmd)
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Channel returns the preview's event channel.
func (e *Engine) Channel() *channel.Channel {
	return e.channel
}

// Preview returns the orchestrator.
func (e *Engine) Preview() *preview.Orchestrator {
	return e.preview
}

// View returns the view adapter.
func (e *Engine) View() *view.StateView {
	return e.view
}

// Config returns the configuration currently in effect.
func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Loader returns the story module loader currently in effect.
func (e *Engine) Loader() *csf.Loader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loader
}
