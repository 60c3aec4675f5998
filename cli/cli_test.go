package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/storyview/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "config not found",
			err:  errors.ConfigNotFound("/tmp/storyview.yml"),
			want: []string{"Configuration not found: /tmp/storyview.yml"},
		},
		{
			name: "story not found",
			err:  errors.StoryNotFound("missing--story"),
			want: []string{"Couldn't find story matching", "storyview extract"},
		},
		{
			name: "user story error",
			err:  errors.UserStoryError("Broken", "the button needs a label"),
			want: []string{"Broken", "the button needs a label"},
		},
		{
			name: "daemon",
			err:  errors.DaemonUnavailable("streaming state"),
			want: []string{"streaming state requires a running daemon"},
		},
		{
			name: "plain",
			err:  assert.AnError,
			want: []string{"Error: " + assert.AnError.Error()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &ErrorHandler{Out: &out}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}
}

func TestErrorHandlerVerbose(t *testing.T) {
	var out bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &out}
	h.Handle(errors.ConfigInvalid("debounce_ms must not be negative"))
	assert.Contains(t, out.String(), "Error details:")
	assert.Contains(t, out.String(), `"code": "CONFIG_INVALID"`)
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cmd := NewStandardCommand("storyview", "test")
	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Path())
	assert.True(t, cfg.WatchEnabled())
}

func TestLoadConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storyview.yml")
	require.NoError(t, os.WriteFile(path, []byte("stories_dir: src\n"), 0o644))

	cmd := NewStandardCommand("storyview", "test")
	require.NoError(t, cmd.PersistentFlags().Set("config", path))
	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.StoriesDir)
}

func TestParseChoices(t *testing.T) {
	desc, choices := parseChoices("View mode: story, docs, or none")
	assert.Equal(t, "View mode:", desc)
	assert.Equal(t, []string{"story", "docs", "none"}, choices)

	desc, choices = parseChoices("Story id or title/name")
	assert.Equal(t, "Story id or title/name", desc)
	assert.Nil(t, choices)
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
}

func TestStyledHelp(t *testing.T) {
	root := NewStandardCommand("storyview", "Live preview host")
	sel := RequireDaemon(&cobra.Command{
		Use:     "select <story-id>",
		Short:   "Select a story",
		Example: "storyview select example-button--primary --view-mode docs",
		RunE:    func(*cobra.Command, []string) error { return nil },
	})
	sel.Flags().String("view-mode", "story", "View mode: story, docs, or none")
	root.AddCommand(sel)
	SetStyledHelpWithExtras(root, func(w io.Writer, _ *Theme) {
		fmt.Fprintln(w, "EXTRA SECTION")
	})
	for _, sub := range root.Commands() {
		ApplyStyledHelpRecursive(sub)
	}

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--help"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "STORYVIEW")
	assert.Contains(t, out.String(), "COMMANDS")
	assert.Contains(t, out.String(), "needs a running daemon")
	assert.Contains(t, out.String(), "EXTRA SECTION")

	out.Reset()
	root.SetArgs([]string{"select", "--help"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Requires a running daemon")
	assert.Contains(t, out.String(), "--view-mode")
	assert.Contains(t, out.String(), "• docs")
	assert.Contains(t, out.String(), "EXAMPLES")
}
