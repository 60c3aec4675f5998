package store

import (
	"sync"

	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/models"
)

// GlobalsStore holds the process-wide globals.
type GlobalsStore struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
	initial models.Globals
	globals models.Globals
}

// NewGlobalsStore creates a store seeded from project annotations.
func NewGlobalsStore(globals models.Globals, globalTypes models.ArgTypes) *GlobalsStore {
	s := &GlobalsStore{}
	s.Set(globals, globalTypes)
	return s
}

// Set re-seeds the store when project annotations change, carrying over any
// values that were changed from their initial state.
func (s *GlobalsStore) Set(globals models.Globals, globalTypes models.ArgTypes) {
	s.mu.Lock()
	var delta map[string]interface{}
	if s.initial != nil {
		delta = Diff(s.initial, s.globals)
	}

	s.allowed = make(map[string]struct{}, len(globals)+len(globalTypes))
	for k := range globals {
		s.allowed[k] = struct{}{}
	}
	for k := range globalTypes {
		s.allowed[k] = struct{}{}
	}
	s.initial = models.Globals(apply(defaultsFromTypes(globalTypes), globals))
	s.globals = s.initial.Clone()
	s.mu.Unlock()

	if delta != nil {
		s.UpdateFromPersisted(models.Globals(delta))
	}
}

// Get returns a copy of the current globals.
func (s *GlobalsStore) Get() models.Globals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globals.Clone()
}

// Update merges update into the current globals.
func (s *GlobalsStore) Update(update models.Globals) models.Globals {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals = models.Globals(apply(s.globals, update))
	return s.globals.Clone()
}

// UpdateFromPersisted merges only globals the project declares.
func (s *GlobalsStore) UpdateFromPersisted(persisted models.Globals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := make(map[string]interface{}, len(persisted))
	for k, v := range persisted {
		if _, ok := s.allowed[k]; !ok {
			logging.NewLogger("store").WithField("global", k).
				Warn("Attempted to set a global that is not defined in initial globals or globalTypes")
			continue
		}
		allowed[k] = v
	}
	s.globals = models.Globals(apply(s.globals, allowed))
}
