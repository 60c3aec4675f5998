// Package store loads story modules through a pluggable loader and turns
// them into processed stories, and holds the args and globals those stories
// render with.
package store

import (
	"context"
	"sync"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/sirupsen/logrus"
)

// ModuleLoader imports the story module at importPath. Loaders should return
// the same *CSFFile for a module that has not changed.
type ModuleLoader interface {
	Load(ctx context.Context, importPath string) (*models.CSFFile, error)
}

// LoaderFunc adapts a function to ModuleLoader.
type LoaderFunc func(ctx context.Context, importPath string) (*models.CSFFile, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, importPath string) (*models.CSFFile, error) {
	return f(ctx, importPath)
}

type processedFile struct {
	file    *models.CSFFile
	project *models.ProjectAnnotations
	stories map[string]*models.Story
}

// StoryStore resolves story ids to processed stories.
type StoryStore struct {
	mu      sync.RWMutex
	loader  ModuleLoader
	index   *index.StoryIndex
	project *models.ProjectAnnotations
	cache   map[string]*processedFile

	Args    *ArgsStore
	Globals *GlobalsStore

	onArgsReset func(storyID string, args models.Args)

	logger *logrus.Entry
}

// NewStoryStore creates a store that imports modules through loader.
func NewStoryStore(loader ModuleLoader) *StoryStore {
	return &StoryStore{
		loader:  loader,
		cache:   make(map[string]*processedFile),
		Args:    NewArgsStore(),
		Globals: NewGlobalsStore(nil, nil),
		logger:  logging.NewLogger("store"),
	}
}

// SetProjectAnnotations installs project-wide annotations. Stories processed
// under earlier annotations are re-processed on their next load.
func (s *StoryStore) SetProjectAnnotations(project *models.ProjectAnnotations) {
	s.mu.Lock()
	s.project = project
	s.mu.Unlock()
	s.Globals.Set(project.Globals, project.GlobalTypes)
}

// ProjectAnnotations returns the installed annotations, or nil.
func (s *StoryStore) ProjectAnnotations() *models.ProjectAnnotations {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// SetIndex installs a new story index.
func (s *StoryStore) SetIndex(idx *index.StoryIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
}

// Index returns the current story index, or nil before initialization.
func (s *StoryStore) Index() *index.StoryIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// ReplaceLoader swaps the module loader after a change to the story sources.
// Cached stories are kept and reused when the new loader returns the same module.
func (s *StoryStore) ReplaceLoader(loader ModuleLoader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = loader
}

// LoadStory imports and processes the story's module. The returned story is
// the same pointer on every call until its module or the project annotations
// change.
func (s *StoryStore) LoadStory(ctx context.Context, storyID string) (*models.Story, error) {
	s.mu.RLock()
	idx, loader := s.index, s.loader
	s.mu.RUnlock()

	entry, ok := idx.Entry(storyID)
	if !ok {
		return nil, errors.StoryNotFound(storyID)
	}

	file, err := loader.Load(ctx, entry.ImportPath)
	if err != nil {
		return nil, err
	}

	stories, err := s.processed(file)
	if err != nil {
		return nil, err
	}
	story, ok := stories[storyID]
	if !ok {
		return nil, errors.New(errors.ErrCodeStoryNotFound,
			"Story '"+storyID+"' is indexed but its module "+entry.ImportPath+" does not export it")
	}
	if args, reset := s.Args.SetInitial(story); reset {
		s.mu.RLock()
		onReset := s.onArgsReset
		s.mu.RUnlock()
		if onReset != nil {
			onReset(story.ID, args)
		}
	}
	return story, nil
}

// OnArgsReset registers fn to be called when loading a reloaded story
// re-seeds args that were already stored for it.
func (s *StoryStore) OnArgsReset(fn func(storyID string, args models.Args)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onArgsReset = fn
}

func (s *StoryStore) processed(file *models.CSFFile) (map[string]*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[file.ImportPath]; ok && cached.file == file && cached.project == s.project {
		return cached.stories, nil
	}
	stories, err := processCSFFile(file, s.project)
	if err != nil {
		return nil, err
	}
	s.cache[file.ImportPath] = &processedFile{file: file, project: s.project, stories: stories}
	s.logger.WithField("import_path", file.ImportPath).Debug("Processed story module")
	return stories, nil
}

// StoryContext builds the render context from the story and its live args and globals.
func (s *StoryStore) StoryContext(story *models.Story, viewMode models.ViewMode) *models.StoryContext {
	args, ok := s.Args.Get(story.ID)
	if !ok {
		args = story.InitialArgs.Clone()
	}
	return &models.StoryContext{
		ID:          story.ID,
		Title:       story.Title,
		Name:        story.Name,
		Component:   story.Component,
		ViewMode:    viewMode,
		Parameters:  story.Parameters,
		InitialArgs: story.InitialArgs,
		ArgTypes:    story.ArgTypes,
		Args:        args,
		Globals:     s.Globals.Get(),
	}
}

// ComponentStories returns every story sharing story's module, in index order.
func (s *StoryStore) ComponentStories(ctx context.Context, story *models.Story) ([]*models.Story, error) {
	var out []*models.Story
	for _, e := range s.Index().Entries() {
		if e.ImportPath != story.ImportPath {
			continue
		}
		sibling, err := s.LoadStory(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, sibling)
	}
	return out, nil
}

// Extract loads every indexed story and returns them keyed by id.
// Docs-only stories are skipped unless includeDocsOnly is set.
func (s *StoryStore) Extract(ctx context.Context, includeDocsOnly bool) (map[string]*models.Story, error) {
	if s.ProjectAnnotations() == nil {
		return nil, errors.New(errors.ErrCodePreviewEntry,
			"Failed to initialize the preview: project annotations are not loaded")
	}
	out := make(map[string]*models.Story)
	for _, e := range s.Index().Entries() {
		story, err := s.LoadStory(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if story.DocsOnly() && !includeDocsOnly {
			continue
		}
		out[story.ID] = story
	}
	return out, nil
}
