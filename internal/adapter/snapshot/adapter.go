package snapshot

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/sirupsen/logrus"
)

// StoryDocument is what a story render writes into its element.
type StoryDocument struct {
	Kind       string            `json:"kind"`
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Name       string            `json:"name"`
	Component  string            `json:"component"`
	ViewMode   models.ViewMode   `json:"viewMode"`
	Args       models.Args       `json:"args"`
	Globals    models.Globals    `json:"globals"`
	Parameters models.Parameters `json:"parameters,omitempty"`
}

// DocsDocument is what a docs render writes into its element.
type DocsDocument struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Component string         `json:"component,omitempty"`
	Stories   []string       `json:"stories"`
	Globals   models.Globals `json:"globals"`
}

// Renderer renders stories and docs pages into *Element values.
type Renderer struct {
	logger *logrus.Entry

	mu       sync.Mutex
	releases map[*Element][]func(context.Context) error
}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{
		logger:   logging.NewLogger("snapshot"),
		releases: make(map[*Element][]func(context.Context) error),
	}
}

func asElement(el render.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("snapshot renderer cannot mount into %T", el)
	}
	return e, nil
}

// Story is a render.RenderFunc. A story without a component is reported as
// a user error, the way a framework reports a story that returned nothing.
func (r *Renderer) Story(ctx context.Context, rc *render.RenderContext, el render.Element) (render.Disposer, error) {
	e, err := asElement(el)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// The unit is being torn down; there is nothing to report.
		return nil, fmt.Errorf("%w: %v", errors.ErrIgnoredException, err)
	}

	sc := rc.StoryContext
	if sc.Component == "" {
		rc.ShowError(
			fmt.Sprintf("Expecting a component for story %q", sc.Name),
			"Set `component` in the story module, or mark the story as docs only.",
		)
		return nil, nil
	}

	doc := StoryDocument{
		Kind:       "story",
		ID:         sc.ID,
		Title:      sc.Title,
		Name:       sc.Name,
		Component:  sc.Component,
		ViewMode:   sc.ViewMode,
		Args:       sc.Args,
		Globals:    sc.Globals,
		Parameters: sc.Parameters,
	}
	if err := e.write(doc, rc.ForceRemount); err != nil {
		return nil, err
	}
	rc.ShowMain()

	return func(context.Context, render.TeardownOptions) error {
		e.clear()
		return nil
	}, nil
}

// Docs is a render.DocsFunc. Every story of the component is mounted into a
// child element. An in-place rerender keeps the children already mounted.
func (r *Renderer) Docs(ctx context.Context, dc *render.DocsContext, el render.Element) (render.Disposer, error) {
	e, err := asElement(el)
	if err != nil {
		return nil, err
	}

	doc := DocsDocument{
		Kind:    "docs",
		ID:      dc.ID,
		Title:   dc.Title,
		Stories: make([]string, 0, len(dc.ComponentStories)),
	}
	if dc.Story != nil {
		doc.Component = dc.Story.Component
	}
	if dc.StoryContext != nil {
		doc.Globals = dc.StoryContext.Globals
	}

	for _, story := range dc.ComponentStories {
		doc.Stories = append(doc.Stories, story.ID)
		if story.DocsOnly() || dc.RenderStoryToElement == nil {
			continue
		}
		child, created := e.child(story.ID)
		if !created {
			continue
		}
		release := dc.RenderStoryToElement(ctx, story, child)
		r.mu.Lock()
		r.releases[e] = append(r.releases[e], release)
		r.mu.Unlock()
	}

	if err := e.write(doc, dc.ForceRemount); err != nil {
		return nil, err
	}
	dc.ShowMain()

	return func(ctx context.Context, _ render.TeardownOptions) error {
		return r.release(ctx, e)
	}, nil
}

func (r *Renderer) release(ctx context.Context, e *Element) error {
	r.mu.Lock()
	releases := r.releases[e]
	delete(r.releases, e)
	r.mu.Unlock()

	var firstErr error
	for _, release := range releases {
		if err := release(ctx); err != nil {
			r.logger.WithError(err).WithField("element", e.Name()).Warn("Failed to release embedded story")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	e.dropChildren()
	e.clear()
	return firstErr
}
