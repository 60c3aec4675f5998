package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/sirupsen/logrus"
)

// InlineRenderer mounts a story inside a docs page and returns its release func.
type InlineRenderer func(ctx context.Context, story *models.Story, el Element) func(context.Context) error

// DocsContext is what a docs renderer receives.
type DocsContext struct {
	ID    string
	Title string
	Name  string

	Story            *models.Story
	// StoryContext is nil when the unit was built without story contexts.
	StoryContext     *models.StoryContext
	ComponentStories []*models.Story
	ForceRemount     bool

	// RenderStoryToElement mounts an embedded story. Each call must be released.
	RenderStoryToElement InlineRenderer
	ShowMain             func()
}

// DocsFunc renders a documentation page into el.
type DocsFunc func(ctx context.Context, dc *DocsContext, el Element) (Disposer, error)

// DocsRender mounts the docs page of a prepared story.
type DocsRender struct {
	id        string
	store     Store
	emitter   Emitter
	docsFn    DocsFunc
	callbacks Callbacks
	logger    *logrus.Entry

	// withoutStoryContext leaves DocsContext.StoryContext unset.
	withoutStoryContext bool

	mu          sync.Mutex
	phase       Phase
	story       *models.Story
	element     Element
	inline      InlineRenderer
	disposer    Disposer
	tearingDown bool
	done        chan struct{}

	renderMu sync.Mutex
}

// FromStoryRender wraps a prepared story unit in a docs unit. The story unit
// itself is never mounted. With withoutStoryContext the docs renderer only
// gets the story's id, title and definition.
func FromStoryRender(sr *StoryRender, docsFn DocsFunc, withoutStoryContext bool) *DocsRender {
	return &DocsRender{
		id:        sr.id,
		store:     sr.store,
		emitter:   sr.emitter,
		docsFn:    docsFn,
		callbacks: sr.callbacks,
		logger:    logging.NewLogger("render").WithField("story_id", sr.id).WithField("view_mode", "docs"),
		phase:     PhasePrepared,
		story:     sr.Story(),
		done:      make(chan struct{}),

		withoutStoryContext: withoutStoryContext,
	}
}

// StoryID returns the id of the story whose docs are rendered.
func (d *DocsRender) StoryID() string { return d.id }

// Story returns the story whose docs are rendered.
func (d *DocsRender) Story() *models.Story { return d.story }

// Phase returns the current phase.
func (d *DocsRender) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// IsPreparing is always false: docs units start out prepared.
func (d *DocsRender) IsPreparing() bool { return false }

// IsEqual reports whether other renders the very same story definition.
func (d *DocsRender) IsEqual(other Render) bool { return sameStory(d, other) }

// DisableKeyListeners is always false for docs pages.
func (d *DocsRender) DisableKeyListeners() bool { return false }

// RenderToElement mounts the docs page into el. Embedded stories are mounted
// through inline.
func (d *DocsRender) RenderToElement(ctx context.Context, el Element, inline InlineRenderer) error {
	d.mu.Lock()
	d.element = el
	d.inline = inline
	d.mu.Unlock()
	return d.render(ctx, true)
}

// Rerender renders the page again. With forceRemount the current page is
// unmounted first; otherwise the renderer may update in place.
func (d *DocsRender) Rerender(ctx context.Context, forceRemount bool) error {
	return d.render(ctx, forceRemount)
}

func (d *DocsRender) render(ctx context.Context, forceRemount bool) error {
	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	d.mu.Lock()
	if d.tearingDown || d.element == nil {
		d.mu.Unlock()
		return nil
	}
	if err := transition(&d.phase, PhaseRendering, d.id, d.emitter); err != nil {
		d.mu.Unlock()
		return err
	}
	el, inline := d.element, d.inline
	var previous Disposer
	if forceRemount {
		previous, d.disposer = d.disposer, nil
	}
	d.mu.Unlock()

	if previous != nil {
		if err := previous(ctx, TeardownOptions{}); err != nil {
			d.logger.WithError(err).Warn("Failed to unmount docs page before remount")
		}
	}

	components, err := d.store.ComponentStories(ctx, d.story)
	if err != nil {
		d.fail(err)
		return nil
	}
	dc := &DocsContext{
		ID:                   d.story.ID,
		Title:                d.story.Title,
		Name:                 d.story.Name,
		Story:                d.story,
		ComponentStories:     components,
		ForceRemount:         forceRemount,
		RenderStoryToElement: inline,
		ShowMain: func() {
			if d.callbacks.ShowMain != nil {
				d.callbacks.ShowMain()
			}
		},
	}
	if !d.withoutStoryContext {
		dc.StoryContext = d.store.StoryContext(d.story, models.ViewModeDocs)
	}

	disposer, err := d.docsFn(ctx, dc, el)

	d.mu.Lock()
	if disposer != nil {
		d.disposer = disposer
	}
	torn := d.tearingDown
	d.mu.Unlock()
	if torn {
		return nil
	}
	if err != nil {
		d.fail(err)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := transition(&d.phase, PhaseRendered, d.id, d.emitter); err != nil {
		return err
	}
	if d.emitter != nil {
		d.emitter.Emit(channel.EventDocsRendered, d.id, nil)
	}
	return nil
}

func (d *DocsRender) fail(err error) {
	d.mu.Lock()
	if d.tearingDown {
		d.mu.Unlock()
		return
	}
	_ = transition(&d.phase, PhaseErrored, d.id, d.emitter)
	d.mu.Unlock()
	if d.callbacks.ShowException != nil {
		d.callbacks.ShowException(err)
	}
}

// Teardown unmounts the page. It is idempotent and waits for any in-flight render.
func (d *DocsRender) Teardown(ctx context.Context, opts TeardownOptions) error {
	d.mu.Lock()
	if d.tearingDown {
		done := d.done
		d.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
	d.tearingDown = true
	d.mu.Unlock()
	defer close(d.done)

	d.renderMu.Lock()
	defer d.renderMu.Unlock()

	d.mu.Lock()
	disposer := d.disposer
	d.disposer = nil
	_ = transition(&d.phase, PhaseTornDown, d.id, d.emitter)
	d.mu.Unlock()

	if disposer == nil {
		return nil
	}
	if err := disposer(ctx, opts); err != nil {
		return fmt.Errorf("unmount docs for %s: %w", d.id, err)
	}
	return nil
}
