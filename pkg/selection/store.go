// Package selection holds the current selection, the initial navigation
// specifier and the ancillary query parameters. It never triggers rendering.
package selection

import (
	"sync"

	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
)

// Store is the selection state holder. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	selection   *models.Selection
	specifier   *models.SelectionSpecifier
	queryParams map[string]string
}

// New creates a Store with an optional initial specifier.
func New(specifier *models.SelectionSpecifier) *Store {
	return &Store{
		specifier:   specifier,
		queryParams: make(map[string]string),
	}
}

// Selection returns the current selection, if one was set.
func (s *Store) Selection() (models.Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection == nil {
		return models.Selection{}, false
	}
	return *s.selection, true
}

// SetSelection replaces the current selection. An empty view mode means story mode.
func (s *Store) SetSelection(sel models.Selection) {
	if sel.ViewMode == "" {
		sel.ViewMode = models.ViewModeStory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = &sel
}

// SelectionSpecifier returns the initial navigation request, if any.
func (s *Store) SelectionSpecifier() (models.SelectionSpecifier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.specifier == nil {
		return models.SelectionSpecifier{}, false
	}
	return *s.specifier, true
}

// StoryIDFromSpecifier resolves spec against the live index.
func (s *Store) StoryIDFromSpecifier(idx *index.StoryIndex, spec models.StorySpecifier) (string, bool) {
	if idx == nil {
		return "", false
	}
	return idx.StoryIDFromSpecifier(spec)
}

// SetQueryParams merges params into the stored query parameters.
func (s *Store) SetQueryParams(params map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range params {
		s.queryParams[k] = v
	}
}

// QueryParams returns a copy of the stored query parameters.
func (s *Store) QueryParams() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.queryParams))
	for k, v := range s.queryParams {
		out[k] = v
	}
	return out
}
