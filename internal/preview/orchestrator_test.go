package preview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	primaryID   = "button--primary"
	secondaryID = "button--secondary"
	cardID      = "card--basic"
	buttonPath  = "./button.stories.yaml"
	cardPath    = "./card.stories.yaml"
)

var v7 = Features{StoryStoreV7: true}

func storyFiles() []*models.CSFFile {
	return []*models.CSFFile{module("Button", "Primary", "Secondary"), module("Card", "Basic")}
}

func specFor(id string, mode models.ViewMode) *models.SelectionSpecifier {
	return &models.SelectionSpecifier{StorySpecifier: models.ParseStorySpecifier(id), ViewMode: mode}
}

func selectStory(t *testing.T, h *harness, id string, mode models.ViewMode) {
	t.Helper()
	require.NoError(t, h.ch.Dispatch(context.Background(), channel.Command{
		Type:      channel.CommandSetCurrentStory,
		Selection: &channel.SelectionRequest{StoryID: id, ViewMode: mode},
	}))
}

func lastError(t *testing.T, h *harness) error {
	t.Helper()
	_, errs := h.view.snapshot()
	require.NotEmpty(t, errs)
	return errs[len(errs)-1]
}

func TestInitializeRendersWildcardSelection(t *testing.T) {
	h := newHarness(t, specFor("*", ""), v7, storyFiles()...)
	h.initialize()

	want := []string{
		"storySpecified:" + primaryID,
		"currentStoryWasSet:" + primaryID,
		"storyPrepared:" + primaryID,
	}
	if diff := cmp.Diff(want, lifecycle(h.drain())); diff != "" {
		t.Errorf("lifecycle events mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{primaryID}, h.renderer.stats().mounted)
	calls, _ := h.view.snapshot()
	assert.Equal(t, []string{
		"preparingStory(true)",
		"prepareForStory:" + primaryID,
		"storyDuringRender",
		"main",
	}, calls)

	st := h.p.Status()
	assert.Equal(t, primaryID, st.MountedStoryID)
	assert.Equal(t, render.PhaseRendered, st.MountedPhase)
	assert.False(t, st.Docs)
}

func TestInitializeSpecifierErrors(t *testing.T) {
	t.Run("unknown story", func(t *testing.T) {
		h := newHarness(t, specFor("missing--story", ""), v7, storyFiles()...)
		h.initialize()

		missing := ofType(h.drain(), channel.EventStoryMissing)
		require.Len(t, missing, 1)
		assert.Equal(t, channel.StoryMissingPayload{Specifier: "missing--story"}, missing[0].Payload)

		err := lastError(t, h)
		assert.True(t, errors.Is(err, errors.ErrCodeStoryNotFound))
		assert.Contains(t, err.Error(), "Couldn't find story matching 'missing--story'")
		assert.Empty(t, h.renderer.stats().mounts)
	})

	t.Run("no specifier", func(t *testing.T) {
		h := newHarness(t, nil, v7, storyFiles()...)
		h.initialize()

		calls, errs := h.view.snapshot()
		assert.Contains(t, calls, "noPreview")
		assert.Empty(t, errs)
		assert.Len(t, ofType(h.drain(), channel.EventStoryMissing), 1)
	})

	t.Run("wildcard on empty index", func(t *testing.T) {
		h := newHarness(t, specFor("*", ""), v7)
		h.initialize()

		err := lastError(t, h)
		assert.True(t, errors.Is(err, errors.ErrCodeNoStories))
		assert.Contains(t, err.Error(), "Couldn't find any stories")
	})

	t.Run("title and name", func(t *testing.T) {
		h := newHarness(t, specFor("Card::Basic", ""), v7, storyFiles()...)
		h.initialize()
		assert.Equal(t, []string{cardID}, h.renderer.stats().mounted)
	})
}

func TestSameSelectionKeepsMountedStory(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()
	h.drain()

	require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: primaryID}))

	want := []string{
		"currentStoryWasSet:" + primaryID,
		"storyUnchanged:" + primaryID,
	}
	if diff := cmp.Diff(want, lifecycle(h.drain())); diff != "" {
		t.Errorf("lifecycle events mismatch (-want +got):\n%s", diff)
	}
	stats := h.renderer.stats()
	assert.Equal(t, []string{primaryID}, stats.mounts)
	assert.Zero(t, stats.disposals)
}

func TestSwitchingStoriesTearsDownPrevious(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()
	h.drain()

	require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: cardID}))

	want := []string{
		"currentStoryWasSet:" + cardID,
		"storyChanged:" + cardID,
		"storyPrepared:" + cardID,
	}
	if diff := cmp.Diff(want, lifecycle(h.drain())); diff != "" {
		t.Errorf("lifecycle events mismatch (-want +got):\n%s", diff)
	}
	stats := h.renderer.stats()
	assert.Equal(t, []string{cardID}, stats.mounted)
	assert.Equal(t, 1, stats.disposals)
	assert.Equal(t, 1, stats.maxMain)
}

func TestSelectionWhilePreparingAbortsEarlierOne(t *testing.T) {
	h := newHarness(t, nil, v7, storyFiles()...)
	h.initialize()
	h.drain()

	h.loader.hold(buttonPath)
	selectStory(t, h, primaryID, "")
	require.Eventually(t, func() bool { return h.loader.waitingOn(buttonPath) == 1 }, time.Second, time.Millisecond)

	selectStory(t, h, cardID, "")
	require.Eventually(t, func() bool {
		return len(h.renderer.stats().mounted) == 1
	}, time.Second, time.Millisecond)

	h.loader.release(buttonPath)
	h.p.Wait()

	events := h.drain()
	for _, e := range events {
		if e.Type == channel.EventStoryPrepared || e.Type == channel.EventStoryRendered {
			assert.Equal(t, cardID, e.StoryID, "superseded story produced %s", e.Type)
		}
	}
	calls, _ := h.view.snapshot()
	assert.NotContains(t, calls, "prepareForStory:"+primaryID)
	assert.Equal(t, []string{cardID}, h.renderer.stats().mounts)
}

func TestSwitchToDocsBeforePrepareRendersDocsOnce(t *testing.T) {
	h := newHarness(t, nil, v7, storyFiles()...)
	h.initialize()

	h.loader.hold(buttonPath)
	selectStory(t, h, primaryID, models.ViewModeStory)
	require.Eventually(t, func() bool { return h.loader.waitingOn(buttonPath) == 1 }, time.Second, time.Millisecond)
	selectStory(t, h, primaryID, models.ViewModeDocs)
	require.Eventually(t, func() bool { return h.loader.waitingOn(buttonPath) == 2 }, time.Second, time.Millisecond)

	h.loader.release(buttonPath)
	h.p.Wait()

	calls, _ := h.view.snapshot()
	assert.NotContains(t, calls, "prepareForStory:"+primaryID)
	docsElements := 0
	for _, c := range calls {
		if c == "prepareForDocs" {
			docsElements++
		}
	}
	assert.Equal(t, 1, docsElements)

	renders, _, mounted := h.docs.snapshot()
	assert.Equal(t, []bool{true}, renders)
	assert.Equal(t, 1, mounted)
	assert.True(t, h.p.Status().Docs)
	assert.Zero(t, h.renderer.stats().maxMain)
}

func TestHotReloadRemountsChangedStory(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()
	h.drain()

	// Unchanged sources keep the mounted story.
	require.NoError(t, h.p.OnStoriesChanged(context.Background(), nil, nil))
	assert.Equal(t, []string{"storyUnchanged:" + primaryID}, lifecycle(h.drain()))

	changed := module("Button", "Primary", "Secondary")
	changed.Meta.Args["size"] = "large"
	h.loader.replace(changed)
	require.NoError(t, h.p.OnStoriesChanged(context.Background(), nil, nil))

	events := h.drain()
	want := []string{
		"storyPrepared:" + primaryID,
		"storyArgsUpdated:" + primaryID,
	}
	if diff := cmp.Diff(want, lifecycle(events)); diff != "" {
		t.Errorf("lifecycle events mismatch (-want +got):\n%s", diff)
	}
	updated := ofType(events, channel.EventStoryArgsUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, "large", updated[0].Payload.(channel.ArgsUpdatedPayload).Args["size"])

	stats := h.renderer.stats()
	assert.Equal(t, []string{primaryID, primaryID}, stats.mounts)
	assert.Equal(t, 1, stats.disposals)
	assert.Equal(t, 1, stats.maxMain)
}

func TestHotReloadAnnouncesArgsOfOtherLoadedStories(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()
	require.NoError(t, h.p.OnPreloadStories(ctx, []string{secondaryID}))
	require.NoError(t, h.p.OnUpdateArgs(ctx, secondaryID, models.Args{"label": "Edited"}))
	h.drain()

	changed := module("Button", "Primary", "Secondary")
	changed.Meta.Args["size"] = "large"
	h.loader.replace(changed)
	require.NoError(t, h.p.OnStoriesChanged(ctx, nil, nil))
	require.NoError(t, h.p.OnPreloadStories(ctx, []string{secondaryID}))

	byStory := map[string][]models.Args{}
	for _, e := range ofType(h.drain(), channel.EventStoryArgsUpdated) {
		byStory[e.StoryID] = append(byStory[e.StoryID], e.Payload.(channel.ArgsUpdatedPayload).Args)
	}
	require.Len(t, byStory[primaryID], 1, "the selected story is announced once, by its remount")
	require.Len(t, byStory[secondaryID], 1)
	assert.Equal(t, models.Args{"label": "Edited", "size": "large"}, byStory[secondaryID][0])

	// Loading it again changes nothing and announces nothing.
	require.NoError(t, h.p.OnPreloadStories(ctx, []string{secondaryID}))
	assert.Empty(t, ofType(h.drain(), channel.EventStoryArgsUpdated))
}

func TestStoriesChangedRemovingSelectedStory(t *testing.T) {
	files := storyFiles()
	h := newHarness(t, specFor(cardID, ""), v7, files...)
	h.initialize()

	require.NoError(t, h.p.OnStoriesChanged(context.Background(), nil, indexFor(t, files[0])))

	assert.Empty(t, h.renderer.stats().mounted)
	assert.True(t, errors.Is(lastError(t, h), errors.ErrCodeStoryNotFound))
	assert.Empty(t, h.p.Status().MountedStoryID)
}

func TestDocsArgsUpdateInPlaceAndGlobalsRemount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, specFor(primaryID, models.ViewModeDocs), v7, storyFiles()...)
	h.initialize()

	require.NoError(t, h.p.OnUpdateArgs(ctx, primaryID, models.Args{"label": "Changed"}))
	renders, disposals, mounted := h.docs.snapshot()
	assert.Equal(t, []bool{true, false}, renders)
	assert.Zero(t, disposals)
	assert.Equal(t, 1, mounted)

	require.NoError(t, h.p.OnUpdateGlobals(ctx, models.Globals{"theme": "dark"}))
	renders, disposals, mounted = h.docs.snapshot()
	assert.Equal(t, []bool{true, false, true}, renders)
	assert.Equal(t, 1, disposals)
	assert.Equal(t, 1, mounted)

	globals := ofType(h.drain(), channel.EventGlobalsUpdated)
	require.Len(t, globals, 1)
	assert.Equal(t, "dark", globals[0].Payload.(channel.GlobalsPayload).Globals["theme"])

	// Every inline story of the old page was released, the new page's are tracked.
	assert.Equal(t, 2, h.p.Status().StoryRenders)
}

func TestBreakingChangesDropDocsStoryContext(t *testing.T) {
	h := newHarness(t, specFor(primaryID, models.ViewModeDocs), v7, storyFiles()...)
	h.initialize()
	assert.Equal(t, []bool{true}, h.docs.withStoryContext())

	h = newHarness(t, specFor(primaryID, models.ViewModeDocs),
		Features{StoryStoreV7: true, BreakingChangesV7: true}, storyFiles()...)
	h.initialize()
	require.Len(t, ofType(h.drain(), channel.EventDocsRendered), 1)
	assert.Equal(t, []bool{false}, h.docs.withStoryContext())
}

func TestLeavingDocsReleasesInlineStories(t *testing.T) {
	h := newHarness(t, specFor(primaryID, models.ViewModeDocs), v7, storyFiles()...)
	h.initialize()
	require.Equal(t, 2, h.p.Status().StoryRenders)
	require.Len(t, ofType(h.drain(), channel.EventDocsRendered), 1)

	require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: cardID}))

	_, disposals, mounted := h.docs.snapshot()
	assert.Equal(t, 1, disposals)
	assert.Zero(t, mounted)
	assert.Equal(t, 1, h.p.Status().StoryRenders)
	assert.Equal(t, []string{cardID}, h.renderer.stats().mounted)
}

func TestStoryArgsUpdateRerendersMountedStory(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()
	h.drain()

	require.NoError(t, h.ch.Dispatch(context.Background(), channel.Command{
		Type:    channel.CommandUpdateArgs,
		StoryID: primaryID,
		Args:    models.Args{"label": "Clicked"},
	}))
	h.p.Wait()

	updated := ofType(h.drain(), channel.EventStoryArgsUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, models.Args{"label": "Clicked"}, updated[0].Payload.(channel.ArgsUpdatedPayload).Args)

	stats := h.renderer.stats()
	assert.Equal(t, []string{primaryID, primaryID}, stats.mounts)
	assert.Zero(t, stats.disposals)
}

func TestSelectionChurnNeverMountsTwoStories(t *testing.T) {
	h := newHarness(t, specFor("*", ""), v7, storyFiles()...)
	h.loader.delay = func(path string) time.Duration {
		if path == buttonPath {
			return 2 * time.Millisecond
		}
		return time.Millisecond
	}
	h.initialize()

	ids := []string{secondaryID, cardID, primaryID}
	modes := []models.ViewMode{models.ViewModeStory, models.ViewModeDocs}
	var last string
	for i := 0; i < 30; i++ {
		last = ids[i%len(ids)]
		mode := models.ViewModeStory
		if i%4 == 3 && i != 29 {
			mode = modes[1]
		}
		selectStory(t, h, last, mode)
		if i%5 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	h.p.Wait()

	stats := h.renderer.stats()
	assert.LessOrEqual(t, stats.maxMain, 1)
	assert.Equal(t, []string{last}, stats.mounted)
	assert.Equal(t, last, h.p.Status().MountedStoryID)
}

func TestRenderFailuresAreReported(t *testing.T) {
	t.Run("exception", func(t *testing.T) {
		h := newHarness(t, nil, v7, storyFiles()...)
		h.initialize()
		h.renderer.failWith[cardID] = fmt.Errorf("kaboom")

		require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: cardID}))

		events := h.drain()
		thrown := ofType(events, channel.EventStoryThrewException)
		require.Len(t, thrown, 1)
		assert.Equal(t, "kaboom", thrown[0].Payload.(channel.ErrorPayload).Message)
		assertErroredPhase(t, events, cardID)
		assert.True(t, errors.Is(lastError(t, h), errors.ErrCodeRenderException))
	})

	t.Run("ignored exception", func(t *testing.T) {
		h := newHarness(t, nil, v7, storyFiles()...)
		h.initialize()
		h.renderer.failWith[cardID] = fmt.Errorf("navigating away: %w", errors.ErrIgnoredException)

		require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: cardID}))

		events := h.drain()
		assert.Empty(t, ofType(events, channel.EventStoryThrewException))
		_, errs := h.view.snapshot()
		assert.Empty(t, errs)
	})

	t.Run("user story error", func(t *testing.T) {
		h := newHarness(t, nil, v7, storyFiles()...)
		h.initialize()
		h.renderer.userErrors[cardID] = "Expecting a component"

		require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: cardID}))

		events := h.drain()
		errored := ofType(events, channel.EventStoryErrored)
		require.Len(t, errored, 1)
		assert.Equal(t, "Expecting a component", errored[0].Payload.(channel.ErrorPayload).Title)
		assertErroredPhase(t, events, cardID)

		err := lastError(t, h)
		assert.True(t, errors.Is(err, errors.ErrCodeUserStoryError))
		pe, _ := errors.As(err)
		assert.Equal(t, "the story returned nothing", pe.DetailString("description"))
	})
}

func assertErroredPhase(t *testing.T, events []channel.Event, storyID string) {
	t.Helper()
	for _, e := range ofType(events, channel.EventStoryRenderPhaseChanged) {
		if e.Payload.(channel.PhaseChangedPayload).NewPhase == string(render.PhaseErrored) {
			assert.Equal(t, storyID, e.StoryID)
			return
		}
	}
	t.Errorf("no errored phase change for %s", storyID)
}

func TestPrepareFailureClearsMainSlot(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()
	h.drain()
	h.loader.failing[cardPath] = fmt.Errorf("syntax error in module")

	require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: cardID}))

	stats := h.renderer.stats()
	assert.Empty(t, stats.mounted)
	assert.Equal(t, 1, stats.disposals)
	assert.True(t, errors.Is(lastError(t, h), errors.ErrCodeStoryPreparation))
	assert.Len(t, ofType(h.drain(), channel.EventStoryMissing), 1)

	// The next good selection mounts normally.
	delete(h.loader.failing, cardPath)
	require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: secondaryID}))
	assert.Equal(t, []string{secondaryID}, h.renderer.stats().mounted)
}

func TestPreloadDoesNotRender(t *testing.T) {
	h := newHarness(t, nil, v7, storyFiles()...)
	h.initialize()
	before, _ := h.view.snapshot()

	require.NoError(t, h.p.OnPreloadStories(context.Background(), []string{primaryID, secondaryID, cardID}))

	after, _ := h.view.snapshot()
	assert.Equal(t, before, after)
	assert.Empty(t, h.renderer.stats().mounts)
	assert.Equal(t, 3, h.loader.loads)

	err := h.p.OnPreloadStories(context.Background(), []string{"nope--story"})
	assert.True(t, errors.Is(err, errors.ErrCodeStoryNotFound))
}

func TestKeydownForwarding(t *testing.T) {
	playing := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	files := storyFiles()
	files[1].Stories[0].Play = func(ctx context.Context, sc *models.StoryContext) error {
		once.Do(func() { close(playing) })
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	h := newHarness(t, nil, v7, files...)
	h.initialize()
	h.drain()

	key := models.KeyEvent{Key: "k", Code: "KeyK", KeyCode: 75, Target: &models.KeyTarget{TagName: "DIV"}}

	h.p.OnKeydown(models.KeyEvent{Key: "a", Target: &models.KeyTarget{TagName: "INPUT"}})
	assert.Empty(t, ofType(h.drain(), channel.EventPreviewKeydown))

	selectStory(t, h, cardID, "")
	<-playing
	h.p.OnKeydown(key)
	assert.Empty(t, ofType(h.drain(), channel.EventPreviewKeydown))

	close(release)
	h.p.Wait()

	require.NoError(t, h.ch.Dispatch(context.Background(), channel.Command{Type: channel.CommandKeydown, Key: &key}))
	forwarded := ofType(h.drain(), channel.EventPreviewKeydown)
	require.Len(t, forwarded, 1)
	got := forwarded[0].Payload.(models.KeyEvent)
	assert.Nil(t, got.Target)
	assert.Equal(t, "KeyK", got.Code)
}

func TestResetArgsRestoresInitialValues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()

	require.NoError(t, h.p.OnUpdateArgs(ctx, primaryID, models.Args{"label": "Changed", "extra": 1}))
	args, _ := h.p.Store().Args.Get(primaryID)
	assert.Equal(t, models.Args{"label": "Changed", "extra": 1}, args)

	require.NoError(t, h.p.OnResetArgs(ctx, primaryID, []string{"label"}))
	args, _ = h.p.Store().Args.Get(primaryID)
	assert.Equal(t, models.Args{"label": "Button", "extra": 1}, args)

	require.NoError(t, h.p.OnResetArgs(ctx, primaryID, nil))
	args, _ = h.p.Store().Args.Get(primaryID)
	assert.Equal(t, models.Args{"label": "Button"}, args)
}

func TestForceRemount(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.initialize()

	require.NoError(t, h.ch.Dispatch(context.Background(), channel.Command{
		Type:    channel.CommandForceRemount,
		StoryID: primaryID,
	}))
	h.p.Wait()

	stats := h.renderer.stats()
	assert.Equal(t, []string{primaryID, primaryID}, stats.mounts)
	assert.Equal(t, 1, stats.disposals)
	assert.Equal(t, []string{primaryID}, stats.mounted)
}

func TestPersistedArgsFromSpecifier(t *testing.T) {
	spec := specFor(primaryID, "")
	spec.Args = models.Args{"label": "From URL"}
	h := newHarness(t, spec, v7, storyFiles()...)
	h.initialize()

	updated := ofType(h.drain(), channel.EventStoryArgsUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, "From URL", updated[0].Payload.(channel.ArgsUpdatedPayload).Args["label"])
}

func TestPreviewEntryErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, specFor("*", ""), v7, storyFiles()...)

	_, err := h.p.Extract(ctx, false)
	assert.True(t, errors.Is(err, errors.ErrCodePreviewEntry))

	opts := h.initOptions()
	opts.GetProjectAnnotations = func(context.Context) (*models.ProjectAnnotations, error) {
		return nil, fmt.Errorf("preview config is broken")
	}
	require.Error(t, h.p.Initialize(ctx, opts))

	configErrors := ofType(h.drain(), channel.EventConfigError)
	require.Len(t, configErrors, 1)
	assert.Equal(t, "Error reading project annotations", configErrors[0].Payload.(channel.ErrorPayload).Title)
	assert.Equal(t, "preview config is broken", h.p.Status().PreviewEntryError)

	_, err = h.p.Extract(ctx, false)
	assert.EqualError(t, err, "preview config is broken")

	require.NoError(t, h.p.OnGetProjectAnnotationsChanged(ctx, h.initOptions().GetProjectAnnotations))
	assert.Empty(t, h.p.Status().PreviewEntryError)
	assert.Equal(t, []string{primaryID}, h.renderer.stats().mounted)

	stories, err := h.p.Extract(ctx, false)
	require.NoError(t, err)
	assert.Len(t, stories, 3)
}

func TestLegacyStoreSendsStoryList(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), Features{}, storyFiles()...)
	h.initialize()

	events := h.drain()
	assert.Empty(t, ofType(events, channel.EventStoryPrepared))
	set := ofType(events, channel.EventSetStories)
	require.Len(t, set, 1)
	payload := set[0].Payload.(channel.SetStoriesPayload)
	assert.Len(t, payload.Stories, 3)
	assert.Equal(t, "Secondary", payload.Stories[secondaryID].Name)
	assert.Equal(t, "light", payload.Globals["theme"])
}

func TestInitialGlobalsFromSpecifier(t *testing.T) {
	spec := specFor(primaryID, "")
	spec.Globals = models.Globals{"locale": "fr", "unknown": "x"}
	h := newHarness(t, spec, v7, storyFiles()...)
	h.initialize()

	set := ofType(h.drain(), channel.EventSetGlobals)
	require.Len(t, set, 1)
	payload := set[0].Payload.(channel.GlobalsPayload)
	assert.Equal(t, models.Globals{"theme": "light", "locale": "fr"}, payload.Globals)
	assert.Contains(t, payload.GlobalTypes, "locale")
}

func TestCloseTearsEverythingDown(t *testing.T) {
	h := newHarness(t, specFor(primaryID, models.ViewModeDocs), v7, storyFiles()...)
	h.initialize()

	require.NoError(t, h.p.Close(context.Background()))
	_, _, mounted := h.docs.snapshot()
	assert.Zero(t, mounted)
	assert.Zero(t, h.p.Status().StoryRenders)

	// Commands after close are accepted but never render.
	selectStory(t, h, cardID, "")
	h.p.Wait()
	assert.Empty(t, h.renderer.stats().mounted)

	require.NoError(t, h.p.OnSetCurrentStory(context.Background(), models.Selection{StoryID: secondaryID}))
	assert.Empty(t, h.renderer.stats().mounted)
	assert.Empty(t, h.p.Status().MountedStoryID)
}

func TestCloseDuringSelectionChurn(t *testing.T) {
	h := newHarness(t, specFor(primaryID, ""), v7, storyFiles()...)
	h.loader.delay = func(string) time.Duration { return time.Millisecond }
	h.initialize()

	ids := []string{secondaryID, cardID, primaryID}
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = h.ch.Dispatch(context.Background(), channel.Command{
					Type:      channel.CommandSetCurrentStory,
					Selection: &channel.SelectionRequest{StoryID: ids[(g+i)%len(ids)]},
				})
			}
		}(g)
	}

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, h.p.Close(context.Background()))
	wg.Wait()
	h.p.Wait()

	stats := h.renderer.stats()
	assert.LessOrEqual(t, stats.maxMain, 1)
	assert.Empty(t, stats.mounted)
	assert.Empty(t, h.p.Status().MountedStoryID)
}
