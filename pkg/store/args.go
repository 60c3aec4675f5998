package store

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/models"
)

// ArgsStore holds the current args of every story that has been loaded.
// Update is the only way current args change after initialization.
type ArgsStore struct {
	mu        sync.RWMutex
	initial   map[string]models.Args
	byStoryID map[string]models.Args
}

// NewArgsStore creates an empty ArgsStore.
func NewArgsStore() *ArgsStore {
	return &ArgsStore{
		initial:   make(map[string]models.Args),
		byStoryID: make(map[string]models.Args),
	}
}

// Get returns a copy of the story's current args.
func (s *ArgsStore) Get(storyID string) (models.Args, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	args, ok := s.byStoryID[storyID]
	if !ok {
		return nil, false
	}
	return args.Clone(), true
}

// SetInitial seeds a story's args the first time it is seen. When a reloaded
// story arrives with different initial args, the user's changes relative to
// the old initial args are reapplied on top of the new ones; reset is then
// true and args holds the result.
func (s *ArgsStore) SetInitial(story *models.Story) (args models.Args, reset bool) {
	s.mu.Lock()
	initial, seen := s.initial[story.ID]
	if !seen {
		s.initial[story.ID] = story.InitialArgs.Clone()
		s.byStoryID[story.ID] = story.InitialArgs.Clone()
		s.mu.Unlock()
		return nil, false
	}
	if (len(initial) == 0 && len(story.InitialArgs) == 0) || reflect.DeepEqual(initial, story.InitialArgs) {
		s.mu.Unlock()
		return nil, false
	}
	delta := Diff(initial, s.byStoryID[story.ID])
	s.initial[story.ID] = story.InitialArgs.Clone()
	s.byStoryID[story.ID] = story.InitialArgs.Clone()
	s.mu.Unlock()

	if delta != nil {
		s.updateFromDelta(story, delta)
	}
	args, _ = s.Get(story.ID)
	return args, true
}

// Update merges update into the story's current args. Undefined values remove keys.
func (s *ArgsStore) Update(storyID string, update models.Args) models.Args {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := models.Args(apply(s.byStoryID[storyID], update))
	s.byStoryID[storyID] = next
	return next.Clone()
}

// UpdateFromPersisted applies args that came from outside (the URL or saved
// state), coercing them to the story's arg types and dropping unknown names.
func (s *ArgsStore) UpdateFromPersisted(story *models.Story, persisted models.Args) {
	mapped := MapArgsToTypes(persisted, story.ArgTypes)
	s.updateFromDelta(story, mapped)
}

func (s *ArgsStore) updateFromDelta(story *models.Story, delta map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := apply(s.byStoryID[story.ID], delta)
	s.byStoryID[story.ID] = validateOptions(merged, story.ArgTypes)
}

// validateOptions drops values that are not among an arg's declared options.
func validateOptions(args map[string]interface{}, argTypes models.ArgTypes) models.Args {
	out := make(models.Args, len(args))
	for k, v := range args {
		at, ok := argTypes[k]
		if !ok || len(at.Options) == 0 || containsOption(at.Options, v) {
			out[k] = v
			continue
		}
		logging.NewLogger("store").
			WithField("arg", k).
			WithField("value", v).
			Warn("Received illegal value for arg, expected one of its options")
	}
	return out
}

func containsOption(options []interface{}, v interface{}) bool {
	for _, o := range options {
		if reflect.DeepEqual(o, v) {
			return true
		}
	}
	return false
}

// MapArgsToTypes coerces loosely typed values (usually strings from a URL) to
// the types declared in argTypes. Names without an arg type, and values that
// cannot be coerced, are dropped.
func MapArgsToTypes(args models.Args, argTypes models.ArgTypes) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range args {
		at, ok := argTypes[k]
		if !ok {
			continue
		}
		if mapped, ok := mapToType(v, at.Type); ok {
			out[k] = mapped
		}
	}
	return out
}

func mapToType(v interface{}, t *models.SBType) (interface{}, bool) {
	if v == nil || t == nil {
		return v, true
	}
	switch t.Name {
	case "string":
		return fmt.Sprint(v), true
	case "enum", "other":
		return v, true
	case "number":
		switch n := v.(type) {
		case float64, float32, int, int64:
			return n, true
		case string:
			f, err := strconv.ParseFloat(n, 64)
			return f, err == nil
		}
		return nil, false
	case "boolean":
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			return b == "true", true
		}
		return nil, false
	case "array":
		if _, ok := v.([]interface{}); ok {
			return v, true
		}
		return nil, false
	case "object":
		if _, ok := v.(map[string]interface{}); ok {
			return v, true
		}
		return nil, false
	default:
		return v, true
	}
}
