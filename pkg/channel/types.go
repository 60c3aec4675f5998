// Package channel is the typed, bidirectional message bus between the preview
// and the rest of the tool (index panel, addons).
package channel

import (
	"time"

	"github.com/grovetools/storyview/pkg/models"
)

// CommandType identifies an inbound command.
type CommandType string

const (
	CommandSetCurrentStory   CommandType = "setCurrentStory"
	CommandUpdateQueryParams CommandType = "updateQueryParams"
	CommandPreloadStories    CommandType = "preloadStories"
	CommandUpdateArgs        CommandType = "updateStoryArgs"
	CommandResetArgs         CommandType = "resetStoryArgs"
	CommandUpdateGlobals     CommandType = "updateGlobals"
	CommandForceRemount      CommandType = "forceRemount"
	CommandKeydown           CommandType = "previewKeydownForward"
)

// CommandTypes lists every inbound command.
var CommandTypes = []CommandType{
	CommandSetCurrentStory,
	CommandUpdateQueryParams,
	CommandPreloadStories,
	CommandUpdateArgs,
	CommandResetArgs,
	CommandUpdateGlobals,
	CommandForceRemount,
	CommandKeydown,
}

// Command is an inbound message. Only the fields relevant to Type are set.
type Command struct {
	Type        CommandType       `json:"type"`
	Selection   *SelectionRequest `json:"selection,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	StoryIDs    []string          `json:"storyIds,omitempty"`
	StoryID     string            `json:"storyId,omitempty"`
	Args        models.Args       `json:"args,omitempty"`
	ArgNames    []string          `json:"argNames,omitempty"`
	Globals     models.Globals    `json:"globals,omitempty"`
	Key         *models.KeyEvent  `json:"key,omitempty"`
}

// SelectionRequest asks for a story; an empty view mode means story mode.
type SelectionRequest struct {
	StoryID  string          `json:"storyId"`
	ViewMode models.ViewMode `json:"viewMode,omitempty"`
}

// EventType identifies an outbound notification.
type EventType string

const (
	EventStorySpecified          EventType = "storySpecified"
	EventCurrentStoryWasSet      EventType = "currentStoryWasSet"
	EventStoryChanged            EventType = "storyChanged"
	EventStoryUnchanged          EventType = "storyUnchanged"
	EventStoryPrepared           EventType = "storyPrepared"
	EventStoryArgsUpdated        EventType = "storyArgsUpdated"
	EventStoryMissing            EventType = "storyMissing"
	EventStoryThrewException     EventType = "storyThrewException"
	EventStoryErrored            EventType = "storyErrored"
	EventStoryRenderPhaseChanged EventType = "storyRenderPhaseChanged"
	EventStoryRendered           EventType = "storyRendered"
	EventDocsRendered            EventType = "docsRendered"
	EventPreviewKeydown          EventType = "previewKeydown"
	EventSetGlobals              EventType = "setGlobals"
	EventGlobalsUpdated          EventType = "globalsUpdated"
	EventSetStories              EventType = "setStories"
	EventConfigError             EventType = "configError"
)

// Event is an outbound notification. Payload holds one of the payload types
// below, selected by Type.
type Event struct {
	Type      EventType   `json:"type"`
	StoryID   string      `json:"storyId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// StoryPreparedPayload carries the resolved context of a prepared story.
type StoryPreparedPayload struct {
	ID          string            `json:"id"`
	Parameters  models.Parameters `json:"parameters"`
	InitialArgs models.Args       `json:"initialArgs"`
	ArgTypes    models.ArgTypes   `json:"argTypes"`
	Args        models.Args       `json:"args"`
}

// ArgsUpdatedPayload carries the full args of a story after an update.
type ArgsUpdatedPayload struct {
	StoryID string      `json:"storyId"`
	Args    models.Args `json:"args"`
}

// GlobalsPayload carries the full globals after an update.
type GlobalsPayload struct {
	Globals     models.Globals  `json:"globals"`
	GlobalTypes models.ArgTypes `json:"globalTypes,omitempty"`
}

// PhaseChangedPayload reports a render phase transition.
type PhaseChangedPayload struct {
	NewPhase string `json:"newPhase"`
	StoryID  string `json:"storyId"`
}

// ErrorPayload describes a render failure.
type ErrorPayload struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
}

// StoryMissingPayload names the specifier that failed to resolve, if any.
type StoryMissingPayload struct {
	Specifier string `json:"specifier,omitempty"`
}

// SetStoriesPayload is the legacy full story list sent when the v7 store is off.
type SetStoriesPayload struct {
	V       int                     `json:"v"`
	Globals models.Globals          `json:"globals"`
	Stories map[string]StorySummary `json:"stories"`
}

// StorySummary is one story in a SetStoriesPayload.
type StorySummary struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Name       string            `json:"name"`
	ImportPath string            `json:"importPath"`
	Parameters models.Parameters `json:"parameters,omitempty"`
}
