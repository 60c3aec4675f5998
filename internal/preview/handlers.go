package preview

import (
	"context"
	"fmt"

	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/store"
	"golang.org/x/sync/errgroup"
)

// registerHandlers wires inbound channel commands. Handlers do their state
// writes synchronously, in arrival order, and render in the background.
func (p *Orchestrator) registerHandlers() {
	p.channel.On(channel.CommandSetCurrentStory, func(ctx context.Context, cmd channel.Command) error {
		if cmd.Selection == nil || cmd.Selection.StoryID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "setCurrentStory requires a story id")
		}
		p.setCurrentStory(models.Selection{StoryID: cmd.Selection.StoryID, ViewMode: cmd.Selection.ViewMode})
		p.spawn("renderSelection", func(ctx context.Context) error {
			return p.renderSelection(ctx, nil)
		})
		return nil
	})
	p.channel.On(channel.CommandUpdateQueryParams, func(_ context.Context, cmd channel.Command) error {
		p.OnUpdateQueryParams(cmd.QueryParams)
		return nil
	})
	p.channel.On(channel.CommandPreloadStories, func(_ context.Context, cmd channel.Command) error {
		ids := cmd.StoryIDs
		p.spawn("preloadStories", func(ctx context.Context) error {
			return p.OnPreloadStories(ctx, ids)
		})
		return nil
	})
	p.channel.On(channel.CommandUpdateArgs, func(_ context.Context, cmd channel.Command) error {
		if cmd.StoryID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "updateStoryArgs requires a story id")
		}
		p.updateArgs(cmd.StoryID, cmd.Args)
		p.spawn("updateArgs", func(ctx context.Context) error {
			return p.rerenderAfterArgs(ctx, cmd.StoryID)
		})
		return nil
	})
	p.channel.On(channel.CommandResetArgs, func(_ context.Context, cmd channel.Command) error {
		p.spawn("resetArgs", func(ctx context.Context) error {
			return p.OnResetArgs(ctx, cmd.StoryID, cmd.ArgNames)
		})
		return nil
	})
	p.channel.On(channel.CommandUpdateGlobals, func(_ context.Context, cmd channel.Command) error {
		p.updateGlobals(cmd.Globals)
		p.spawn("updateGlobals", p.rerenderAfterGlobals)
		return nil
	})
	p.channel.On(channel.CommandForceRemount, func(_ context.Context, cmd channel.Command) error {
		p.spawn("forceRemount", func(ctx context.Context) error {
			return p.OnForceRemount(ctx, cmd.StoryID)
		})
		return nil
	})
	p.channel.On(channel.CommandKeydown, func(_ context.Context, cmd channel.Command) error {
		if cmd.Key != nil {
			p.OnKeydown(*cmd.Key)
		}
		return nil
	})
}

func (p *Orchestrator) setCurrentStory(sel models.Selection) {
	p.selection.SetSelection(sel)
	current, _ := p.selection.Selection()
	p.channel.Emit(channel.EventCurrentStoryWasSet, current.StoryID, current)
}

// OnSetCurrentStory selects a story and renders it.
func (p *Orchestrator) OnSetCurrentStory(ctx context.Context, sel models.Selection) error {
	p.setCurrentStory(sel)
	return p.renderSelection(ctx, nil)
}

// OnUpdateQueryParams stores ancillary navigation parameters.
func (p *Orchestrator) OnUpdateQueryParams(params map[string]string) {
	p.selection.SetQueryParams(params)
}

// OnPreloadStories loads stories concurrently to warm caches. Nothing is
// rendered and the display is not affected.
func (p *Orchestrator) OnPreloadStories(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.PreloadConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := p.store.LoadStory(gctx, id); err != nil {
				return fmt.Errorf("preload %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// OnUpdateArgs merges args into a story's current args, re-renders every unit
// showing that story and announces the new args. A mounted docs page is
// updated in place.
func (p *Orchestrator) OnUpdateArgs(ctx context.Context, storyID string, args models.Args) error {
	p.updateArgs(storyID, args)
	return p.rerenderAfterArgs(ctx, storyID)
}

func (p *Orchestrator) updateArgs(storyID string, args models.Args) {
	updated := p.store.Args.Update(storyID, args)
	p.channel.Emit(channel.EventStoryArgsUpdated, storyID, channel.ArgsUpdatedPayload{
		StoryID: storyID,
		Args:    updated,
	})
}

func (p *Orchestrator) rerenderAfterArgs(ctx context.Context, storyID string) error {
	for _, r := range p.renderersFor(storyID) {
		if err := r.Rerender(ctx); err != nil {
			p.logger.WithError(err).WithField("story_id", storyID).Warn("Failed to re-render story after args update")
		}
	}
	if docs := p.mountedDocs(); docs != nil {
		return docs.Rerender(ctx, false)
	}
	return nil
}

// OnUpdateGlobals merges globals, re-renders every story unit and announces
// the new globals. A mounted docs page is fully remounted.
func (p *Orchestrator) OnUpdateGlobals(ctx context.Context, globals models.Globals) error {
	p.updateGlobals(globals)
	return p.rerenderAfterGlobals(ctx)
}

func (p *Orchestrator) updateGlobals(globals models.Globals) {
	updated := p.store.Globals.Update(globals)
	p.channel.Emit(channel.EventGlobalsUpdated, "", channel.GlobalsPayload{Globals: updated})
}

func (p *Orchestrator) rerenderAfterGlobals(ctx context.Context) error {
	for _, r := range p.renderersFor("") {
		if err := r.Rerender(ctx); err != nil {
			p.logger.WithError(err).WithField("story_id", r.StoryID()).Warn("Failed to re-render story after globals update")
		}
	}
	if docs := p.mountedDocs(); docs != nil {
		return docs.Rerender(ctx, true)
	}
	return nil
}

// OnResetArgs restores the named args, or all args, to their initial values.
func (p *Orchestrator) OnResetArgs(ctx context.Context, storyID string, argNames []string) error {
	story, err := p.store.LoadStory(ctx, storyID)
	if err != nil {
		return err
	}
	if len(argNames) == 0 {
		current, _ := p.store.Args.Get(storyID)
		for name := range current {
			argNames = append(argNames, name)
		}
	}
	update := make(models.Args, len(argNames))
	for _, name := range argNames {
		if v, ok := story.InitialArgs[name]; ok {
			update[name] = v
		} else {
			update[name] = store.Undefined
		}
	}
	return p.OnUpdateArgs(ctx, storyID, update)
}

// OnForceRemount remounts every unit showing storyID from scratch.
func (p *Orchestrator) OnForceRemount(ctx context.Context, storyID string) error {
	for _, r := range p.renderersFor(storyID) {
		if err := r.Remount(ctx); err != nil {
			return err
		}
	}
	return nil
}

// OnKeydown forwards a key press to the rest of the tool, unless focus is in
// an input or the displayed story is being driven by its play function.
func (p *Orchestrator) OnKeydown(ev models.KeyEvent) {
	p.mu.Lock()
	mounted := p.mounted
	p.mu.Unlock()
	if mounted != nil && mounted.DisableKeyListeners() {
		return
	}
	if ev.FocusInInput() {
		return
	}
	p.channel.Emit(channel.EventPreviewKeydown, "", ev.Stripped())
}
