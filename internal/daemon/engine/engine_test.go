package engine

import (
	"context"
	"testing"

	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/internal/daemon/store"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/watcher"
	"github.com/grovetools/storyview/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectConfig = `stories_dir: stories
watch:
  enabled: false
selection:
  story: "*"
`

func newEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := testutil.WriteProject(t, projectConfig, map[string]string{"stories/button.stories.yaml": testutil.ButtonModule})

	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)

	e := New(store.New(), cfg, nil, logging.NewLogger("engine-test"))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e, dir
}

func TestInitializeRendersFirstStory(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Initialize(ctx))
	e.Preview().Wait()

	st := e.Store().Get()
	assert.Equal(t, store.DisplayMain, st.Display.Mode)
	assert.Equal(t, "example-button--primary", st.Display.StoryID)
	assert.Equal(t, 2, st.Sources.Stories)
	assert.Empty(t, st.Sources.Error)

	main := e.View().MainElement()
	require.NotNil(t, main)
	assert.Contains(t, string(main.Content()), `"label":"Primary"`)
}

func TestDispatchSelectsStory(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx))

	require.NoError(t, e.Dispatch(ctx, channel.Command{
		Type:      channel.CommandSetCurrentStory,
		Selection: &channel.SelectionRequest{StoryID: "example-button--secondary"},
	}))
	e.Preview().Wait()

	assert.Equal(t, "example-button--secondary", e.Store().Display().StoryID)
	assert.Contains(t, string(e.View().MainElement().Content()), `"label":"Secondary"`)
}

func TestReloadSourcesPicksUpModuleChanges(t *testing.T) {
	e, dir := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx))
	e.Preview().Wait()

	testutil.WriteFile(t, dir, "stories/button.stories.yaml", `title: Example/Button
component: button
stories:
  - export: Primary
    args:
      label: Changed
`)
	sources, err := e.ReloadSources(ctx, watcher.Change{Modules: []string{"button.stories.yaml"}})
	require.NoError(t, err)
	e.Preview().Wait()

	assert.Equal(t, 1, sources.Stories)
	assert.Contains(t, string(e.View().MainElement().Content()), `"label":"Changed"`)
}

func TestReloadSourcesKeepsConfigOnError(t *testing.T) {
	e, dir := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx))

	events := e.Channel().Subscribe()
	defer e.Channel().Unsubscribe(events)

	testutil.WriteFile(t, dir, "storyview.yml", "watch:\n  debounce_ms: -5\n")
	sources, err := e.ReloadSources(ctx, watcher.Change{Config: true})
	require.Error(t, err)
	assert.NotEmpty(t, sources.Error)
	assert.False(t, e.Config().WatchEnabled(), "previous configuration stays in effect")

	ev := <-events
	assert.Equal(t, channel.EventConfigError, ev.Type)
}

func TestReloadSourcesAppliesNewGlobals(t *testing.T) {
	e, dir := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Initialize(ctx))
	e.Preview().Wait()

	testutil.WriteFile(t, dir, "storyview.yml", projectConfig+"globals:\n  theme: dark\n")
	_, err := e.ReloadSources(ctx, watcher.Change{Config: true})
	require.NoError(t, err)
	e.Preview().Wait()

	assert.Equal(t, models.Globals{"theme": "dark"}, e.Config().Globals)
	assert.Contains(t, string(e.View().MainElement().Content()), `"theme":"dark"`)
}

func TestSpecifierOverridesConfig(t *testing.T) {
	dir := testutil.WriteProject(t, projectConfig, map[string]string{"stories/button.stories.yaml": testutil.ButtonModule})
	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)

	spec := &models.SelectionSpecifier{
		StorySpecifier: models.StorySpecifier{ID: "example-button--secondary"},
		ViewMode:       models.ViewModeStory,
	}
	e := New(store.New(), cfg, spec, logging.NewLogger("engine-test"))
	defer e.Close(context.Background())

	require.NoError(t, e.Initialize(context.Background()))
	e.Preview().Wait()
	assert.Equal(t, "example-button--secondary", e.Store().Display().StoryID)
}
