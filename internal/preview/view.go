package preview

import (
	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/pkg/models"
)

// ViewAdapter owns the host's display surfaces. The orchestrator decides what
// is shown; the adapter only shows it.
type ViewAdapter interface {
	// ShowPreparingStory shows a loading indicator for story mode. immediate
	// skips any delay because the view mode changed.
	ShowPreparingStory(immediate bool)
	ShowPreparingDocs()
	ShowMain()
	ShowStoryDuringRender()
	ShowErrorDisplay(err error)
	ShowNoPreview()
	PrepareForStory(story *models.Story) render.Element
	PrepareForDocs() render.Element
}

// Features are the host feature switches that change the orchestrator's protocol.
type Features struct {
	// StoryStoreV7 announces each prepared story with story-prepared instead
	// of sending the full story list with set-stories.
	StoryStoreV7 bool `yaml:"story_store_v7" toml:"story_store_v7" json:"storyStoreV7"`
	// BreakingChangesV7 stops copying the story context onto docs contexts.
	BreakingChangesV7 bool `yaml:"breaking_changes_v7" toml:"breaking_changes_v7" json:"breakingChangesV7"`
}
