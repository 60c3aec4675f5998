package models

import "strings"

// ViewMode selects between rendering a single story and its documentation page.
type ViewMode string

const (
	ViewModeStory ViewMode = "story"
	ViewModeDocs  ViewMode = "docs"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == ViewModeStory || m == ViewModeDocs
}

// Selection is the story currently displayed on the main surface.
// It is replaced wholesale, never mutated.
type Selection struct {
	StoryID  string   `json:"storyId" yaml:"story_id"`
	ViewMode ViewMode `json:"viewMode" yaml:"view_mode"`
}

// WildcardSpecifier requests the first story in the index.
const WildcardSpecifier = "*"

// StorySpecifier is a loose reference to a story: an id (or id prefix),
// the wildcard, or a title/name pair.
type StorySpecifier struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Wildcard bool   `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ParseStorySpecifier turns a navigation string into a specifier.
// "*" is the wildcard; "Title/Path::Name" addresses a story by title and name.
func ParseStorySpecifier(s string) StorySpecifier {
	s = strings.TrimSpace(s)
	if s == WildcardSpecifier {
		return StorySpecifier{Wildcard: true}
	}
	if title, name, ok := strings.Cut(s, "::"); ok {
		return StorySpecifier{Title: title, Name: name}
	}
	return StorySpecifier{ID: s}
}

// String renders the specifier the way it appears in error messages.
func (s StorySpecifier) String() string {
	switch {
	case s.Wildcard:
		return WildcardSpecifier
	case s.ID != "":
		return s.ID
	default:
		return s.Title + "::" + s.Name
	}
}

// SelectionSpecifier is the initial, unresolved navigation request.
type SelectionSpecifier struct {
	StorySpecifier StorySpecifier `json:"storySpecifier" yaml:"story"`
	ViewMode       ViewMode       `json:"viewMode" yaml:"view_mode"`
	Args           Args           `json:"args,omitempty" yaml:"args,omitempty"`
	Globals        Globals        `json:"globals,omitempty" yaml:"globals,omitempty"`
}
