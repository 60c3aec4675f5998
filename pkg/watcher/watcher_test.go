package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options) <-chan Change {
	t.Helper()
	changes := make(chan Change, 16)
	w, err := New(opts, func(c Change) { changes <- c })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return changes
}

func nextChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return Change{}
	}
}

func TestWatcherBatchesModuleWrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "components"), 0o755))

	changes := startWatcher(t, Options{
		Root:     root,
		Patterns: []string{"**/*.stories.yaml"},
		Debounce: 50 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "components", "button.stories.yaml"), []byte("title: Button\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "components", "notes.md"), []byte("# notes\n"), 0o644))

	c := nextChange(t, changes)
	assert.Equal(t, []string{"components/button.stories.yaml"}, c.Modules)
	assert.False(t, c.Config)
	assert.False(t, c.Index)
}

func TestWatcherConfigAndIndex(t *testing.T) {
	project := t.TempDir()
	stories := filepath.Join(project, "stories")
	require.NoError(t, os.MkdirAll(stories, 0o755))
	cfgPath := filepath.Join(project, "storyview.yml")
	idxPath := filepath.Join(project, "index.json")

	changes := startWatcher(t, Options{
		Root:        stories,
		Patterns:    []string{"**/*.stories.yaml"},
		ConfigFiles: []string{cfgPath},
		IndexFile:   idxPath,
		Debounce:    50 * time.Millisecond,
	})

	require.NoError(t, os.WriteFile(cfgPath, []byte("stories_dir: stories\n"), 0o644))
	require.NoError(t, os.WriteFile(idxPath, []byte("{}"), 0o644))

	var got Change
	for !(got.Config && got.Index) {
		c := nextChange(t, changes)
		got.Config = got.Config || c.Config
		got.Index = got.Index || c.Index
		assert.Empty(t, c.Modules)
	}
}

func TestWatcherNewDirectories(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, Options{
		Root:     root,
		Patterns: []string{"**/*.stories.yaml"},
		Debounce: 50 * time.Millisecond,
	})

	dir := filepath.Join(root, "forms")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.stories.yaml"), []byte("title: Input\n"), 0o644))

	var modules []string
	for len(modules) == 0 {
		modules = nextChange(t, changes).Modules
	}
	assert.Equal(t, []string{"forms/input.stories.yaml"}, modules)
}

func TestChangeEmpty(t *testing.T) {
	assert.True(t, Change{}.Empty())
	assert.False(t, Change{Config: true}.Empty())
}
