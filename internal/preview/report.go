package preview

import (
	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/pkg/channel"
)

func (p *Orchestrator) mainStoryCallbacks(storyID string) render.Callbacks {
	return render.Callbacks{
		ShowMain: p.view.ShowMain,
		ShowError: func(title, description string) {
			p.renderError(storyID, title, description)
		},
		ShowException: func(err error) {
			p.renderException(storyID, err)
		},
	}
}

// inlineStoryCallbacks only log: an embedded story must not take over the
// main display.
func (p *Orchestrator) inlineStoryCallbacks(storyID string) render.Callbacks {
	logger := p.logger.WithField("story_id", storyID)
	return render.Callbacks{
		ShowMain: func() {},
		ShowError: func(title, description string) {
			logger.WithField("title", title).WithField("description", description).
				Error("Error rendering docs story")
		},
		ShowException: func(err error) {
			logger.WithError(err).Error("Error rendering docs story")
		},
	}
}

// renderException reports a story that failed while rendering. Ignored
// exceptions are control flow and produce no output at all.
func (p *Orchestrator) renderException(storyID string, err error) {
	if errors.IsIgnored(err) {
		p.logger.WithField("story_id", storyID).Debug("Ignored exception during render")
		return
	}
	p.channel.Emit(channel.EventStoryThrewException, storyID, channel.ErrorPayload{Message: err.Error()})
	p.emitErrored(storyID)
	p.view.ShowErrorDisplay(errors.RenderException(storyID, err))
	p.logger.WithError(err).WithField("story_id", storyID).Error("Error rendering story")
}

// renderError reports a story that signalled a user-facing problem, such as
// returning nothing renderable.
func (p *Orchestrator) renderError(storyID, title, description string) {
	p.logger.WithFields(map[string]interface{}{
		"story_id":    storyID,
		"title":       title,
		"description": description,
	}).Error("Error rendering story")
	p.channel.Emit(channel.EventStoryErrored, storyID, channel.ErrorPayload{Title: title, Description: description})
	p.emitErrored(storyID)
	p.view.ShowErrorDisplay(errors.UserStoryError(title, description))
}

func (p *Orchestrator) emitErrored(storyID string) {
	p.channel.Emit(channel.EventStoryRenderPhaseChanged, storyID, channel.PhaseChangedPayload{
		NewPhase: string(render.PhaseErrored),
		StoryID:  storyID,
	})
}

// renderMissingStory is shown when nothing was requested.
func (p *Orchestrator) renderMissingStory() {
	p.view.ShowNoPreview()
	p.channel.Emit(channel.EventStoryMissing, "", nil)
}

// renderStoryLoadingException reports a specifier or story that could not be loaded.
func (p *Orchestrator) renderStoryLoadingException(specifier string, err error) {
	p.logger.WithError(err).WithField("specifier", specifier).Error("Unable to load story")
	p.view.ShowErrorDisplay(err)
	p.channel.Emit(channel.EventStoryMissing, "", channel.StoryMissingPayload{Specifier: specifier})
}

// renderPreviewEntryError reports a failure to load project annotations or
// the story index. Extract returns the error until a later reload succeeds.
func (p *Orchestrator) renderPreviewEntryError(reason string, err error) {
	p.mu.Lock()
	p.previewEntryError = err
	p.mu.Unlock()
	p.logger.WithError(err).Error(reason)
	p.channel.Emit(channel.EventConfigError, "", channel.ErrorPayload{Title: reason, Message: err.Error()})
	p.view.ShowErrorDisplay(err)
}

func (p *Orchestrator) clearPreviewEntryError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.previewEntryError = nil
}
