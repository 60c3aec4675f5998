// Package preview implements the preview orchestrator: it owns the current
// selection and render units and runs the select, prepare, replace and mount
// protocol in response to channel commands and source changes.
package preview

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/selection"
	"github.com/grovetools/storyview/pkg/store"
	"github.com/sirupsen/logrus"
)

const defaultSlowPrepareWarning = 10 * time.Second

// Options configure an Orchestrator.
type Options struct {
	Features Features
	// RenderFn mounts stories. Required.
	RenderFn render.RenderFunc
	// DocsFn mounts docs pages. Required for docs mode.
	DocsFn render.DocsFunc
	// SlowPrepareWarning is how long a preparation may take before a warning
	// is logged. Preparations are never cancelled for being slow.
	SlowPrepareWarning time.Duration
	// PreloadConcurrency bounds concurrent loads in OnPreloadStories.
	PreloadConcurrency int
}

// Status is a point-in-time view of what the orchestrator displays.
type Status struct {
	Selection         *models.Selection `json:"selection,omitempty" yaml:"selection,omitempty"`
	MountedStoryID    string            `json:"mountedStoryId,omitempty" yaml:"mounted_story_id,omitempty"`
	MountedPhase      render.Phase      `json:"mountedPhase,omitempty" yaml:"mounted_phase,omitempty"`
	Docs              bool              `json:"docs" yaml:"docs"`
	StoryRenders      int               `json:"storyRenders" yaml:"story_renders"`
	PreviewEntryError string            `json:"previewEntryError,omitempty" yaml:"preview_entry_error,omitempty"`
}

// Orchestrator is the preview controller.
type Orchestrator struct {
	opts      Options
	channel   *channel.Channel
	view      ViewAdapter
	selection *selection.Store
	store     *store.StoryStore
	logger    *logrus.Entry

	getStoryIndex func(ctx context.Context) (*index.StoryIndex, error)

	mu                sync.Mutex
	currentSelection  *models.Selection
	currentRender     render.Render
	mounted           render.Render
	displayed         *models.Selection
	storyRenders      []*render.StoryRender
	previewEntryError error
	// closed is set by Close; spawn and the mount path check it under mu.
	closed bool

	// mountMu serialises choosing, tearing down and replacing the unit in the
	// main slot. Preparation and the mount itself run outside it.
	mountMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an orchestrator and registers its command handlers on ch.
func New(ch *channel.Channel, view ViewAdapter, sel *selection.Store, st *store.StoryStore, opts Options) *Orchestrator {
	if opts.SlowPrepareWarning <= 0 {
		opts.SlowPrepareWarning = defaultSlowPrepareWarning
	}
	if opts.PreloadConcurrency <= 0 {
		opts.PreloadConcurrency = 8
	}
	if opts.RenderFn == nil {
		opts.RenderFn = func(context.Context, *render.RenderContext, render.Element) (render.Disposer, error) {
			return nil, errors.New(errors.ErrCodePreviewEntry, "no story renderer is configured")
		}
	}
	if opts.DocsFn == nil {
		opts.DocsFn = func(context.Context, *render.DocsContext, render.Element) (render.Disposer, error) {
			return nil, errors.New(errors.ErrCodePreviewEntry, "no docs renderer is configured")
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Orchestrator{
		opts:      opts,
		channel:   ch,
		view:      view,
		selection: sel,
		store:     st,
		logger:    logging.NewLogger("preview"),
		ctx:       ctx,
		cancel:    cancel,
	}
	st.OnArgsReset(p.argsReset)
	p.registerHandlers()
	return p
}

// argsReset announces args re-seeded by a reload. The current selection is
// skipped: renderSelection reports it once the new definition is mounted.
func (p *Orchestrator) argsReset(storyID string, args models.Args) {
	if sel, ok := p.selection.Selection(); ok && sel.StoryID == storyID {
		return
	}
	p.channel.Emit(channel.EventStoryArgsUpdated, storyID, channel.ArgsUpdatedPayload{
		StoryID: storyID,
		Args:    args,
	})
}

// Store returns the story store the orchestrator renders from.
func (p *Orchestrator) Store() *store.StoryStore { return p.store }

// Selection returns the selection store.
func (p *Orchestrator) Selection() *selection.Store { return p.selection }

// Status reports what is currently displayed.
func (p *Orchestrator) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{StoryRenders: len(p.storyRenders)}
	if p.currentSelection != nil {
		sel := *p.currentSelection
		st.Selection = &sel
	}
	if p.mounted != nil {
		st.MountedStoryID = p.mounted.StoryID()
		st.MountedPhase = p.mounted.Phase()
		_, st.Docs = p.mounted.(*render.DocsRender)
	}
	if p.previewEntryError != nil {
		st.PreviewEntryError = p.previewEntryError.Error()
	}
	return st
}

func (p *Orchestrator) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Orchestrator) isCurrent(r render.Render) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentRender == r
}

// renderSelection displays the current selection.
//
// A unit still preparing when a newer selection arrives is torn down, which
// makes its Prepare return aborted. After preparing, the winner compares
// itself with whatever occupies the main slot, keeps it if nothing changed,
// and otherwise tears it down before mounting.
func (p *Orchestrator) renderSelection(ctx context.Context, persistedArgs models.Args) error {
	// The selection is read under the same lock that installs the new unit,
	// so the newest unit always belongs to the newest selection.
	p.mu.Lock()
	sel, ok := p.selection.Selection()
	if !ok {
		p.mu.Unlock()
		return errors.NoSelection()
	}
	immediate := p.currentSelection == nil || p.currentSelection.ViewMode != sel.ViewMode
	if sel.ViewMode == models.ViewModeDocs {
		p.view.ShowPreparingDocs()
	} else {
		p.view.ShowPreparingStory(immediate)
	}

	var stolen render.Render
	if p.currentRender != nil && p.currentRender.IsPreparing() {
		stolen = p.currentRender
	}
	storyRender := render.NewStoryRender(render.Options{
		StoryID:   sel.StoryID,
		ViewMode:  models.ViewModeStory,
		Store:     p.store,
		Emitter:   p.channel,
		RenderFn:  p.mainRenderFn,
		Callbacks: p.mainStoryCallbacks(sel.StoryID),
	})
	p.currentSelection = &sel
	p.currentRender = storyRender
	p.mu.Unlock()

	if stolen != nil {
		_ = p.teardownRender(ctx, stolen, render.TeardownOptions{})
	}

	slow := time.AfterFunc(p.opts.SlowPrepareWarning, func() {
		p.logger.WithField("story_id", sel.StoryID).
			WithField("elapsed", p.opts.SlowPrepareWarning).
			Warn("Story is taking a long time to load")
	})
	res := storyRender.Prepare(ctx)
	slow.Stop()

	if res.Outcome == render.OutcomeAborted {
		return nil
	}

	p.mountMu.Lock()
	if p.isClosed() {
		p.mountMu.Unlock()
		_ = storyRender.Teardown(ctx, render.TeardownOptions{})
		return nil
	}
	if !p.isCurrent(storyRender) {
		p.mountMu.Unlock()
		p.logger.WithField("story_id", sel.StoryID).Debug("Selection superseded after preparing")
		return nil
	}

	p.mu.Lock()
	lastRender, lastSelection := p.mounted, p.displayed
	p.mu.Unlock()

	if res.Outcome == render.OutcomeFailed {
		// Stale content must not linger under the error display.
		_ = p.teardownRender(ctx, lastRender, render.TeardownOptions{})
		p.setMounted(nil, sel)
		p.mountMu.Unlock()
		p.renderStoryLoadingException(sel.StoryID, res.Err)
		return nil
	}

	storyIDChanged := lastSelection == nil || lastSelection.StoryID != sel.StoryID
	viewModeChanged := lastSelection == nil || lastSelection.ViewMode != sel.ViewMode
	implementationChanged := !storyIDChanged && !storyRender.IsEqual(lastRender)

	story := storyRender.Story()
	if persistedArgs != nil {
		p.store.Args.UpdateFromPersisted(story, persistedArgs)
	}
	sc := p.store.StoryContext(story, sel.ViewMode)

	if lastRender != nil && !storyIDChanged && !implementationChanged && !viewModeChanged {
		p.replaceCurrent(storyRender, lastRender)
		p.mountMu.Unlock()
		p.channel.Emit(channel.EventStoryUnchanged, sel.StoryID, nil)
		p.view.ShowMain()
		return nil
	}

	_ = p.teardownRender(ctx, lastRender, render.TeardownOptions{ViewModeChanged: viewModeChanged})

	if lastSelection != nil && (storyIDChanged || viewModeChanged) {
		p.channel.Emit(channel.EventStoryChanged, sel.StoryID, nil)
	}
	if p.opts.Features.StoryStoreV7 {
		p.channel.Emit(channel.EventStoryPrepared, sel.StoryID, channel.StoryPreparedPayload{
			ID:          sel.StoryID,
			Parameters:  sc.Parameters,
			InitialArgs: sc.InitialArgs,
			ArgTypes:    sc.ArgTypes,
			Args:        sc.Args,
		})
	}
	if implementationChanged || persistedArgs != nil {
		p.channel.Emit(channel.EventStoryArgsUpdated, sel.StoryID, channel.ArgsUpdatedPayload{
			StoryID: sel.StoryID,
			Args:    sc.Args,
		})
	}

	if sel.ViewMode == models.ViewModeDocs || story.DocsOnly() {
		docs := render.FromStoryRender(storyRender, p.opts.DocsFn, p.opts.Features.BreakingChangesV7)
		p.replaceCurrent(storyRender, docs)
		p.setMounted(docs, sel)
		el := p.view.PrepareForDocs()
		p.mountMu.Unlock()
		return docs.RenderToElement(ctx, el, p.RenderStoryToElement)
	}

	p.track(storyRender)
	p.setMounted(storyRender, sel)
	el := p.view.PrepareForStory(story)
	p.mountMu.Unlock()
	return storyRender.RenderToElement(ctx, el)
}

// replaceCurrent swaps from for to, unless a newer selection has installed
// its own unit in the meantime.
func (p *Orchestrator) replaceCurrent(from, to render.Render) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentRender == from {
		p.currentRender = to
	}
}

func (p *Orchestrator) setMounted(r render.Render, sel models.Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mounted = r
	p.displayed = &sel
}

// mainRenderFn makes the story surface visible as the framework starts rendering.
func (p *Orchestrator) mainRenderFn(ctx context.Context, rc *render.RenderContext, el render.Element) (render.Disposer, error) {
	p.view.ShowStoryDuringRender()
	return p.opts.RenderFn(ctx, rc, el)
}

// RenderStoryToElement mounts a story embedded in a docs page. The unit skips
// preparation and is not subject to the main slot's exclusivity; the returned
// func must be called to release it.
func (p *Orchestrator) RenderStoryToElement(ctx context.Context, story *models.Story, el render.Element) func(context.Context) error {
	r := render.NewStoryRender(render.Options{
		StoryID:   story.ID,
		ViewMode:  models.ViewModeDocs,
		Store:     p.store,
		Emitter:   p.channel,
		RenderFn:  p.opts.RenderFn,
		Callbacks: p.inlineStoryCallbacks(story.ID),
		Story:     story,
	})
	p.track(r)
	if err := r.RenderToElement(ctx, el); err != nil {
		p.logger.WithError(err).WithField("story_id", story.ID).Error("Error rendering docs story")
	}
	return func(ctx context.Context) error {
		return p.teardownRender(ctx, r, render.TeardownOptions{})
	}
}

func (p *Orchestrator) track(r *render.StoryRender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storyRenders = append(p.storyRenders, r)
}

// teardownRender untracks and tears down r. Failures are logged and returned
// but never stop the caller from moving on.
func (p *Orchestrator) teardownRender(ctx context.Context, r render.Render, opts render.TeardownOptions) error {
	if r == nil {
		return nil
	}
	p.mu.Lock()
	kept := p.storyRenders[:0]
	for _, sr := range p.storyRenders {
		if render.Render(sr) != r {
			kept = append(kept, sr)
		}
	}
	p.storyRenders = kept
	p.mu.Unlock()

	if err := r.Teardown(ctx, opts); err != nil {
		p.logger.WithError(err).WithField("story_id", r.StoryID()).Warn("Failed to tear down render")
		return err
	}
	return nil
}

// renderersFor returns the tracked story units for storyID, or all of them.
func (p *Orchestrator) renderersFor(storyID string) []*render.StoryRender {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*render.StoryRender
	for _, r := range p.storyRenders {
		if storyID == "" || r.StoryID() == storyID {
			out = append(out, r)
		}
	}
	return out
}

func (p *Orchestrator) mountedDocs() *render.DocsRender {
	p.mu.Lock()
	defer p.mu.Unlock()
	docs, _ := p.mounted.(*render.DocsRender)
	return docs
}

// Wait blocks until renders started by channel commands have finished.
func (p *Orchestrator) Wait() {
	p.wg.Wait()
}

// Close stops accepting asynchronous work and tears down every render.
// Nothing is mounted into the main slot once Close has started.
func (p *Orchestrator) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()

	p.mountMu.Lock()
	defer p.mountMu.Unlock()
	p.mu.Lock()
	mounted := p.mounted
	current := p.currentRender
	renders := append([]*render.StoryRender(nil), p.storyRenders...)
	p.mounted = nil
	p.mu.Unlock()

	var firstErr error
	for _, r := range append([]render.Render{mounted, current}, asRenders(renders)...) {
		if err := p.teardownRender(ctx, r, render.TeardownOptions{}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func asRenders(rs []*render.StoryRender) []render.Render {
	out := make([]render.Render, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// spawn runs fn on its own goroutine, tracked by Wait.
func (p *Orchestrator) spawn(name string, fn func(ctx context.Context) error) {
	// Add happens under mu so it cannot race Close's Wait.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.wg.Done()
		if err := fn(p.ctx); err != nil {
			p.logger.WithError(err).WithField("operation", name).Error("Preview operation failed")
		}
	}()
}
