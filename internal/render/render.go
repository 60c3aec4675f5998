// Package render implements render units: one attempt to prepare and mount a
// story (StoryRender) or its documentation page (DocsRender).
package render

import (
	"context"

	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
)

// Element is an opaque mount target handed out by the view adapter.
type Element interface{}

// TeardownOptions are passed through to framework disposers.
type TeardownOptions struct {
	ViewModeChanged bool
}

// Disposer unmounts whatever a render function mounted.
type Disposer func(ctx context.Context, opts TeardownOptions) error

// RenderContext is what a framework render function receives.
type RenderContext struct {
	Story        *models.Story
	StoryContext *models.StoryContext
	// ForceRemount is set on the first render of a unit and on forced rerenders.
	ForceRemount bool

	// ShowMain must be called once the content is about to become visible.
	ShowMain func()
	// ShowError reports an expected, user-facing problem with the story.
	ShowError func(title, description string)
	// ShowException reports an unexpected failure.
	ShowException func(err error)
}

// RenderFunc is a framework adapter: it mounts a story into el.
type RenderFunc func(ctx context.Context, rc *RenderContext, el Element) (Disposer, error)

// Callbacks are supplied by the owner of a unit to surface its output.
type Callbacks struct {
	ShowMain      func()
	ShowError     func(title, description string)
	ShowException func(err error)
}

// Store is the story store as seen by render units.
type Store interface {
	LoadStory(ctx context.Context, storyID string) (*models.Story, error)
	StoryContext(story *models.Story, viewMode models.ViewMode) *models.StoryContext
	ComponentStories(ctx context.Context, story *models.Story) ([]*models.Story, error)
}

// Emitter publishes lifecycle events.
type Emitter interface {
	Emit(t channel.EventType, storyID string, payload interface{})
}

// Render is a mounted or mountable unit, either a story or a docs page.
type Render interface {
	StoryID() string
	Story() *models.Story
	Phase() Phase
	IsPreparing() bool
	IsEqual(other Render) bool
	DisableKeyListeners() bool
	Teardown(ctx context.Context, opts TeardownOptions) error
}

// Outcome tags the result of preparing a unit.
type Outcome int

const (
	// OutcomePrepared means the story resolved and the unit can render.
	OutcomePrepared Outcome = iota
	// OutcomeAborted means the unit was torn down while preparing. It is not an error.
	OutcomeAborted
	// OutcomeFailed means the story could not be resolved or loaded.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePrepared:
		return "prepared"
	case OutcomeAborted:
		return "aborted"
	default:
		return "failed"
	}
}

// PrepareResult is the outcome of StoryRender.Prepare.
type PrepareResult struct {
	Outcome Outcome
	Context *models.StoryContext
	Err     error
}

func sameStory(a, b Render) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StoryID() == b.StoryID() && a.Story() != nil && a.Story() == b.Story()
}

// transition moves *phase to the next phase and announces it. Errored is
// announced by the owner's callbacks, so it is set silently.
func transition(phase *Phase, to Phase, storyID string, emitter Emitter) error {
	if err := ValidateTransition(*phase, to); err != nil {
		return err
	}
	*phase = to
	if to != PhaseErrored && emitter != nil {
		emitter.Emit(channel.EventStoryRenderPhaseChanged, storyID, channel.PhaseChangedPayload{
			NewPhase: string(to),
			StoryID:  storyID,
		})
	}
	return nil
}
