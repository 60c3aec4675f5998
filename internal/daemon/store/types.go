// Package store provides the in-memory state store for the storyview daemon.
package store

import (
	"time"

	"github.com/grovetools/storyview/internal/preview"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
)

// DisplayMode is what the preview's main area currently shows.
type DisplayMode string

const (
	DisplayNone              DisplayMode = "none"
	DisplayPreparingStory    DisplayMode = "preparing_story"
	DisplayPreparingDocs     DisplayMode = "preparing_docs"
	DisplayMain              DisplayMode = "main"
	DisplayStoryDuringRender DisplayMode = "story_during_render"
	DisplayError             DisplayMode = "error"
	DisplayNoPreview         DisplayMode = "no_preview"
)

// Display is the state of the view surfaces.
type Display struct {
	Mode DisplayMode `json:"mode"`
	// Immediate is set when a loading indicator skipped its delay.
	Immediate bool `json:"immediate,omitempty"`
	// Error is the message on the error display.
	Error string `json:"error,omitempty"`
	// Element names the element prepared for the main area and StoryID the
	// story it was prepared for.
	Element string    `json:"element,omitempty"`
	StoryID string    `json:"storyId,omitempty"`
	Since   time.Time `json:"since"`
}

// Sources describes what the preview was last loaded from.
type Sources struct {
	StoriesDir string    `json:"storiesDir"`
	Index      string    `json:"index,omitempty"`
	Stories    int       `json:"stories"`
	LoadedAt   time.Time `json:"loadedAt"`
	Error      string    `json:"error,omitempty"`
}

// State represents the complete world view of the daemon.
type State struct {
	Display Display         `json:"display"`
	Preview preview.Status  `json:"preview"`
	Globals models.Globals  `json:"globals,omitempty"`
	Sources Sources         `json:"sources"`
	Events  []channel.Event `json:"events"`
}

// maxEvents bounds the recent event history kept in State.
const maxEvents = 100

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateDisplay      UpdateType = "display"
	UpdateEvent        UpdateType = "event"
	UpdatePreview      UpdateType = "preview"
	UpdateSources      UpdateType = "sources"
	UpdateConfigReload UpdateType = "config_reload"
)

// Update represents a change to the state.
type Update struct {
	Type    UpdateType  `json:"type"`
	Source  string      `json:"source"` // Which part of the daemon sent this update (e.g., "view", "channel", "sources")
	Payload interface{} `json:"payload,omitempty"`
}
