// Package index holds the story index produced by the external index generator.
// The index is replaced wholesale; the preview only reads it.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Version is the index format version this package reads and writes.
const Version = 3

// Entry is the index metadata for one story.
type Entry struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Name       string            `json:"name"`
	ImportPath string            `json:"importPath"`
	Parameters models.Parameters `json:"parameters,omitempty"`
}

// StoryIndex maps story ids to entries, preserving the generator's order.
type StoryIndex struct {
	V       int
	stories *orderedmap.OrderedMap[string, Entry]
}

type document struct {
	V       int                                   `json:"v"`
	Stories *orderedmap.OrderedMap[string, Entry] `json:"stories"`
}

// New creates an index holding entries in the given order.
func New(entries ...Entry) *StoryIndex {
	idx := &StoryIndex{V: Version, stories: orderedmap.New[string, Entry]()}
	for _, e := range entries {
		idx.stories.Set(e.ID, e)
	}
	return idx
}

// Len returns the number of indexed stories.
func (i *StoryIndex) Len() int {
	if i == nil || i.stories == nil {
		return 0
	}
	return i.stories.Len()
}

// Entry looks up a story by id.
func (i *StoryIndex) Entry(id string) (Entry, bool) {
	if i == nil || i.stories == nil {
		return Entry{}, false
	}
	return i.stories.Get(id)
}

// Entries returns all entries in index order.
func (i *StoryIndex) Entries() []Entry {
	out := make([]Entry, 0, i.Len())
	if i.Len() == 0 {
		return out
	}
	for pair := i.stories.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// StoryIDFromSpecifier resolves a specifier against the index.
// The wildcard picks the first story; an id matches exactly, falling back to
// the first id with that prefix; a title/name pair matches both fields.
func (i *StoryIndex) StoryIDFromSpecifier(spec models.StorySpecifier) (string, bool) {
	entries := i.Entries()
	if spec.Wildcard {
		if len(entries) == 0 {
			return "", false
		}
		return entries[0].ID, true
	}

	if spec.ID != "" {
		if _, ok := i.Entry(spec.ID); ok {
			return spec.ID, true
		}
		for _, e := range entries {
			if strings.HasPrefix(e.ID, spec.ID) {
				return e.ID, true
			}
		}
		return "", false
	}

	for _, e := range entries {
		if e.Title == spec.Title && e.Name == spec.Name {
			return e.ID, true
		}
	}
	return "", false
}

// MarshalJSON writes the index in the generator's stories.json format.
func (i *StoryIndex) MarshalJSON() ([]byte, error) {
	stories := i.stories
	if stories == nil {
		stories = orderedmap.New[string, Entry]()
	}
	return json.Marshal(document{V: i.V, Stories: stories})
}

// UnmarshalJSON reads the stories.json format, keeping entry order.
func (i *StoryIndex) UnmarshalJSON(data []byte) error {
	doc := document{Stories: orderedmap.New[string, Entry]()}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	i.V = doc.V
	i.stories = doc.Stories
	return nil
}

// Parse validates and decodes an index document.
func Parse(data []byte) (*StoryIndex, error) {
	validator, err := schema.NewIndexValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateBytes(data); err != nil {
		return nil, err
	}

	var idx StoryIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode story index: %w", err)
	}
	return &idx, nil
}

// Load reads and validates an index file written by the index generator.
func Load(path string) (*StoryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IndexInvalid(path, err)
	}
	idx, err := Parse(data)
	if err != nil {
		return nil, errors.IndexInvalid(path, err)
	}
	return idx, nil
}
