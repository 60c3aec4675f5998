package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/sirupsen/logrus"
)

// Options configure a StoryRender.
type Options struct {
	StoryID   string
	ViewMode  models.ViewMode
	Store     Store
	Emitter   Emitter
	RenderFn  RenderFunc
	Callbacks Callbacks
	// Story skips preparation. Inline units embedded in docs pages use it.
	Story *models.Story
}

// StoryRender prepares one story and mounts it into one element.
//
// Teardown may race with Prepare and with renders. It flips the abort flag,
// cancels the unit's context, then waits for any in-flight render to return
// before disposing, so nothing the unit mounts survives a completed Teardown.
type StoryRender struct {
	id        string
	viewMode  models.ViewMode
	store     Store
	emitter   Emitter
	renderFn  RenderFunc
	callbacks Callbacks
	logger    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu                  sync.Mutex
	phase               Phase
	story               *models.Story
	element             Element
	disposer            Disposer
	aborted             bool
	disableKeyListeners bool
	tearingDown         bool
	done                chan struct{}

	// renderMu serialises renders with each other and with teardown.
	renderMu sync.Mutex
}

// NewStoryRender creates a pending unit.
func NewStoryRender(opts Options) *StoryRender {
	ctx, cancel := context.WithCancel(context.Background())
	viewMode := opts.ViewMode
	if viewMode == "" {
		viewMode = models.ViewModeStory
	}
	return &StoryRender{
		id:        opts.StoryID,
		viewMode:  viewMode,
		store:     opts.Store,
		emitter:   opts.Emitter,
		renderFn:  opts.RenderFn,
		callbacks: opts.Callbacks,
		logger:    logging.NewLogger("render").WithField("story_id", opts.StoryID),
		ctx:       ctx,
		cancel:    cancel,
		phase:     PhasePending,
		story:     opts.Story,
		done:      make(chan struct{}),
	}
}

// StoryID returns the id of the story this unit renders.
func (r *StoryRender) StoryID() string { return r.id }

// Story returns the prepared story, or nil.
func (r *StoryRender) Story() *models.Story {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.story
}

// Phase returns the current phase.
func (r *StoryRender) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// IsPreparing reports whether the unit has not finished resolving its story.
func (r *StoryRender) IsPreparing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == PhasePreparing || (r.phase == PhasePending && r.story == nil)
}

// IsEqual reports whether other renders the very same story definition.
func (r *StoryRender) IsEqual(other Render) bool {
	return sameStory(r, other)
}

// DisableKeyListeners reports whether keyboard forwarding should pause,
// which it does while a play function drives the story.
func (r *StoryRender) DisableKeyListeners() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disableKeyListeners
}

func (r *StoryRender) setPhaseLocked(to Phase) error {
	return transition(&r.phase, to, r.id, r.emitter)
}

// Prepare resolves the story definition. Cancellation is only observed when
// loading returns; the load itself runs to completion.
func (r *StoryRender) Prepare(ctx context.Context) PrepareResult {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return PrepareResult{Outcome: OutcomeAborted}
	}
	if err := r.setPhaseLocked(PhasePreparing); err != nil {
		r.mu.Unlock()
		return PrepareResult{Outcome: OutcomeFailed, Err: err}
	}
	r.mu.Unlock()

	story, err := r.store.LoadStory(ctx, r.id)

	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		r.logger.Debug("Preparation aborted")
		return PrepareResult{Outcome: OutcomeAborted}
	}
	if err != nil {
		_ = r.setPhaseLocked(PhaseErrored)
		r.mu.Unlock()
		if _, ok := errors.As(err); !ok {
			err = errors.StoryPreparation(r.id, err)
		}
		return PrepareResult{Outcome: OutcomeFailed, Err: err}
	}
	r.story = story
	_ = r.setPhaseLocked(PhasePrepared)
	r.mu.Unlock()

	return PrepareResult{Outcome: OutcomePrepared, Context: r.store.StoryContext(story, r.viewMode)}
}

// RenderToElement mounts the prepared story into el.
func (r *StoryRender) RenderToElement(ctx context.Context, el Element) error {
	r.mu.Lock()
	r.element = el
	r.mu.Unlock()
	return r.render(ctx, true)
}

// Rerender renders again into the same element with the current args and
// globals. It is a no-op before the first render and after teardown.
func (r *StoryRender) Rerender(ctx context.Context) error {
	return r.render(ctx, false)
}

// Remount unmounts the current output and renders from scratch.
func (r *StoryRender) Remount(ctx context.Context) error {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	disposer := r.disposer
	r.disposer = nil
	aborted := r.aborted
	r.mu.Unlock()
	if aborted {
		return nil
	}
	if disposer != nil {
		if err := disposer(ctx, TeardownOptions{}); err != nil {
			r.logger.WithError(err).Warn("Failed to unmount story before remount")
		}
	}
	return r.renderLocked(ctx, true)
}

func (r *StoryRender) render(ctx context.Context, forceRemount bool) error {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()
	return r.renderLocked(ctx, forceRemount)
}

func (r *StoryRender) renderLocked(ctx context.Context, forceRemount bool) error {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return nil
	}
	if r.story == nil {
		r.mu.Unlock()
		return fmt.Errorf("cannot render story %s before preparing", r.id)
	}
	if r.element == nil {
		r.mu.Unlock()
		return nil
	}
	if err := r.setPhaseLocked(PhaseRendering); err != nil {
		r.mu.Unlock()
		return err
	}
	story, el := r.story, r.element
	r.mu.Unlock()

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	sc := r.store.StoryContext(story, r.viewMode)

	var failed atomic.Bool
	var showMain sync.Once
	rc := &RenderContext{
		Story:        story,
		StoryContext: sc,
		ForceRemount: forceRemount,
		ShowMain: func() {
			showMain.Do(func() {
				if r.callbacks.ShowMain != nil {
					r.callbacks.ShowMain()
				}
			})
		},
		ShowError: func(title, description string) {
			failed.Store(true)
			r.fail(func() {
				if r.callbacks.ShowError != nil {
					r.callbacks.ShowError(title, description)
				}
			})
		},
		ShowException: func(err error) {
			failed.Store(true)
			r.fail(func() { r.showException(err) })
		},
	}

	disposer, err := r.renderFn(renderCtx, rc, el)

	r.mu.Lock()
	if disposer != nil {
		r.disposer = disposer
	}
	if r.aborted {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err != nil {
		r.fail(func() { r.showException(err) })
		return nil
	}
	if failed.Load() {
		return nil
	}

	if forceRemount && story.Play != nil {
		if err := r.play(renderCtx, story, sc); err != nil {
			r.fail(func() { r.showException(err) })
			return nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aborted {
		return nil
	}
	if err := r.setPhaseLocked(PhaseRendered); err != nil {
		return err
	}
	if r.emitter != nil {
		r.emitter.Emit(channel.EventStoryRendered, r.id, nil)
	}
	return nil
}

func (r *StoryRender) play(ctx context.Context, story *models.Story, sc *models.StoryContext) error {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return nil
	}
	if err := r.setPhaseLocked(PhasePlaying); err != nil {
		r.mu.Unlock()
		return err
	}
	r.disableKeyListeners = true
	r.mu.Unlock()

	err := story.Play(ctx, sc)

	r.mu.Lock()
	r.disableKeyListeners = false
	aborted := r.aborted
	r.mu.Unlock()
	if aborted {
		return nil
	}
	return err
}

// fail marks the unit errored and reports through show, unless it was torn down.
func (r *StoryRender) fail(show func()) {
	r.mu.Lock()
	if r.aborted || r.phase == PhaseErrored {
		r.mu.Unlock()
		return
	}
	_ = r.setPhaseLocked(PhaseErrored)
	r.mu.Unlock()
	show()
}

func (r *StoryRender) showException(err error) {
	if r.callbacks.ShowException != nil {
		r.callbacks.ShowException(err)
	}
}

// Teardown cancels preparation or unmounts the story. It is idempotent; every
// call returns only once the first call has finished disposing.
func (r *StoryRender) Teardown(ctx context.Context, opts TeardownOptions) error {
	r.mu.Lock()
	if r.tearingDown {
		done := r.done
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	r.tearingDown = true
	r.aborted = true
	r.mu.Unlock()

	r.cancel()
	defer close(r.done)

	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	disposer := r.disposer
	r.disposer = nil
	r.disableKeyListeners = false
	_ = r.setPhaseLocked(PhaseTornDown)
	r.mu.Unlock()

	if disposer == nil {
		return nil
	}
	if err := disposer(ctx, opts); err != nil {
		return fmt.Errorf("unmount story %s: %w", r.id, err)
	}
	return nil
}
