package preview

import (
	"context"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/store"
)

// ProjectAnnotationsFunc loads project-wide annotations.
type ProjectAnnotationsFunc func(ctx context.Context) (*models.ProjectAnnotations, error)

// StoryIndexFunc loads the current story index.
type StoryIndexFunc func(ctx context.Context) (*index.StoryIndex, error)

// InitOptions are the sources the preview starts from.
type InitOptions struct {
	GetProjectAnnotations ProjectAnnotationsFunc
	GetStoryIndex         StoryIndexFunc
	Loader                store.ModuleLoader
}

// Initialize loads project annotations and the story index, then selects and
// renders the story named by the initial specifier. Entry failures are shown
// on the error display and also returned.
func (p *Orchestrator) Initialize(ctx context.Context, opts InitOptions) error {
	p.mu.Lock()
	p.getStoryIndex = opts.GetStoryIndex
	p.mu.Unlock()
	if opts.Loader != nil {
		p.store.ReplaceLoader(opts.Loader)
	}

	project, err := p.projectAnnotationsOrRenderError(ctx, opts.GetProjectAnnotations)
	if err != nil {
		return err
	}
	return p.initializeWithProjectAnnotations(ctx, project)
}

func (p *Orchestrator) projectAnnotationsOrRenderError(ctx context.Context, get ProjectAnnotationsFunc) (*models.ProjectAnnotations, error) {
	var project *models.ProjectAnnotations
	var err error
	if get == nil {
		err = errors.New(errors.ErrCodePreviewEntry, "no project annotations source configured")
	} else {
		project, err = get(ctx)
		if err == nil && project == nil {
			err = errors.New(errors.ErrCodePreviewEntry, "project annotations are empty")
		}
	}
	if err != nil {
		p.renderPreviewEntryError("Error reading project annotations", err)
		return nil, err
	}
	return project, nil
}

func (p *Orchestrator) initializeWithProjectAnnotations(ctx context.Context, project *models.ProjectAnnotations) error {
	p.store.SetProjectAnnotations(project)
	p.setInitialGlobals()

	p.mu.Lock()
	getStoryIndex := p.getStoryIndex
	p.mu.Unlock()
	if getStoryIndex == nil {
		err := errors.New(errors.ErrCodePreviewEntry, "no story index source configured")
		p.renderPreviewEntryError("Error loading story index", err)
		return err
	}
	idx, err := getStoryIndex(ctx)
	if err != nil {
		p.renderPreviewEntryError("Error loading story index", err)
		return err
	}
	return p.initializeWithStoryIndex(ctx, idx)
}

// setInitialGlobals applies globals from the initial specifier and announces them.
func (p *Orchestrator) setInitialGlobals() {
	if spec, ok := p.selection.SelectionSpecifier(); ok && spec.Globals != nil {
		p.store.Globals.UpdateFromPersisted(spec.Globals)
	}
	p.emitGlobals()
}

func (p *Orchestrator) emitGlobals() {
	var globalTypes models.ArgTypes
	if project := p.store.ProjectAnnotations(); project != nil {
		globalTypes = project.GlobalTypes
	}
	p.channel.Emit(channel.EventSetGlobals, "", channel.GlobalsPayload{
		Globals:     p.store.Globals.Get(),
		GlobalTypes: globalTypes,
	})
}

func (p *Orchestrator) initializeWithStoryIndex(ctx context.Context, idx *index.StoryIndex) error {
	p.store.SetIndex(idx)
	if !p.opts.Features.StoryStoreV7 {
		p.channel.Emit(channel.EventSetStories, "", p.setStoriesPayload())
	}
	return p.selectSpecifiedStory(ctx)
}

func (p *Orchestrator) setStoriesPayload() channel.SetStoriesPayload {
	idx := p.store.Index()
	payload := channel.SetStoriesPayload{
		V:       index.Version,
		Globals: p.store.Globals.Get(),
		Stories: make(map[string]channel.StorySummary, idx.Len()),
	}
	for _, e := range idx.Entries() {
		payload.Stories[e.ID] = channel.StorySummary{
			ID:         e.ID,
			Title:      e.Title,
			Name:       e.Name,
			ImportPath: e.ImportPath,
			Parameters: e.Parameters,
		}
	}
	return payload
}

// selectSpecifiedStory resolves the initial specifier against the index and
// renders the result.
func (p *Orchestrator) selectSpecifiedStory(ctx context.Context) error {
	spec, ok := p.selection.SelectionSpecifier()
	if !ok {
		p.renderMissingStory()
		return nil
	}

	storyID, ok := p.selection.StoryIDFromSpecifier(p.store.Index(), spec.StorySpecifier)
	if !ok {
		if spec.StorySpecifier.Wildcard {
			p.renderStoryLoadingException(spec.StorySpecifier.String(), errors.NoStories())
		} else {
			p.renderStoryLoadingException(spec.StorySpecifier.String(), errors.StoryNotFound(spec.StorySpecifier.String()))
		}
		return nil
	}

	p.selection.SetSelection(models.Selection{StoryID: storyID, ViewMode: spec.ViewMode})
	sel, _ := p.selection.Selection()
	p.channel.Emit(channel.EventStorySpecified, sel.StoryID, sel)
	p.channel.Emit(channel.EventCurrentStoryWasSet, sel.StoryID, sel)

	return p.renderSelection(ctx, spec.Args)
}

// OnStoriesChanged reacts to story sources being rebuilt. Either argument may
// be nil to keep the current one. The current selection is rendered again; if
// nothing was ever selected, the initial specifier gets another chance.
func (p *Orchestrator) OnStoriesChanged(ctx context.Context, loader store.ModuleLoader, idx *index.StoryIndex) error {
	p.clearPreviewEntryError()
	if loader != nil {
		p.store.ReplaceLoader(loader)
	}
	if p.store.ProjectAnnotations() == nil {
		// Initialization has not got past project annotations yet.
		if idx != nil {
			p.store.SetIndex(idx)
		}
		return nil
	}
	if idx != nil {
		p.store.SetIndex(idx)
	}
	if !p.opts.Features.StoryStoreV7 {
		p.channel.Emit(channel.EventSetStories, "", p.setStoriesPayload())
	}

	if _, ok := p.selection.Selection(); ok {
		return p.renderSelection(ctx, nil)
	}
	return p.selectSpecifiedStory(ctx)
}

// OnGetProjectAnnotationsChanged reacts to the project annotations being
// rebuilt, then renders the current selection with them.
func (p *Orchestrator) OnGetProjectAnnotationsChanged(ctx context.Context, get ProjectAnnotationsFunc) error {
	p.clearPreviewEntryError()
	project, err := p.projectAnnotationsOrRenderError(ctx, get)
	if err != nil {
		return err
	}
	if p.store.ProjectAnnotations() == nil {
		return p.initializeWithProjectAnnotations(ctx, project)
	}

	p.store.SetProjectAnnotations(project)
	p.emitGlobals()

	if _, ok := p.selection.Selection(); ok {
		return p.renderSelection(ctx, nil)
	}
	return p.selectSpecifiedStory(ctx)
}

// Extract loads every story and returns the catalog keyed by story id.
func (p *Orchestrator) Extract(ctx context.Context, includeDocsOnly bool) (map[string]*models.Story, error) {
	p.mu.Lock()
	entryErr := p.previewEntryError
	p.mu.Unlock()
	if entryErr != nil {
		return nil, entryErr
	}
	return p.store.Extract(ctx, includeDocsOnly)
}
