package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		want    []string
		notWant []string
	}{
		{
			name:   "default",
			config: FormatConfig{},
			want:   []string{"2024-03-01 10:00:00 [WARN] [orchestrator] [button--primary] rendering phase=errored error=boom"},
		},
		{
			name:    "no timestamp or component",
			config:  FormatConfig{DisableTimestamp: true, DisableComponent: true},
			want:    []string{"[WARN] [button--primary] rendering"},
			notWant: []string{"2024", "orchestrator"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{
				"component": "orchestrator",
				StoryField:  "button--primary",
				"phase":     "errored",
			}).WithError(errors.New("boom"))
			entry.Time = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			entry.Level = logrus.WarnLevel
			entry.Message = "rendering"

			out, err := (&TextFormatter{Config: tt.config}).Format(entry)
			require.NoError(t, err)

			for _, w := range tt.want {
				assert.Contains(t, string(out), w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, string(out), nw)
			}
			assert.True(t, strings.HasSuffix(string(out), "\n"))
		})
	}
}

func TestNewLoggerLevelFromEnv(t *testing.T) {
	t.Setenv("STORYVIEW_LOG_LEVEL", "debug")

	entry := newLogger("test", Config{Level: "error", File: FileSinkConfig{Disabled: true}}, "", true)
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())
	assert.Equal(t, "test", entry.Data["component"])
}

func TestNewLoggerLevelFromConfig(t *testing.T) {
	t.Setenv("STORYVIEW_LOG_LEVEL", "")

	entry := newLogger("test", Config{Level: "warn"}, "", true)
	assert.Equal(t, logrus.WarnLevel, entry.Logger.GetLevel())

	entry = newLogger("test", Config{Level: "loud"}, "", true)
	assert.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())

	cfg := Config{Level: "warn", Components: map[string]string{"orchestrator": "error"}}
	assert.Equal(t, logrus.ErrorLevel, newLogger("orchestrator", cfg, "", true).Logger.GetLevel())
	assert.Equal(t, logrus.WarnLevel, newLogger("server", cfg, "", true).Logger.GetLevel())
}

func TestNewLoggerWritesProjectLogFile(t *testing.T) {
	t.Setenv("STORYVIEW_LOG_LEVEL", "")
	dir := t.TempDir()

	entry := newLogger("preview", Config{Format: FormatConfig{StructuredToStderr: "never"}}, dir, true)
	entry.Info("story rendered")

	path := FilePath("preview", Config{}, dir, time.Now())
	assert.True(t, strings.HasPrefix(path, filepath.Join(dir, ".storyview", "logs", "preview-")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "story rendered")
}

func TestFilePath(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, FilePath("preview", Config{}, "", day))
	assert.Empty(t, FilePath("preview", Config{File: FileSinkConfig{Disabled: true}}, "/p", day))
	assert.Equal(t, "/p/.storyview/logs/preview-2024-03-01.log", FilePath("preview", Config{}, "/p", day))
	assert.Equal(t, "/tmp/x.log", FilePath("preview", Config{File: FileSinkConfig{Path: "/tmp/x.log"}}, "/p", day))
}

func TestNoWritersDiscards(t *testing.T) {
	t.Setenv("STORYVIEW_LOG_LEVEL", "")
	t.Setenv("STORYVIEW_DEBUG", "")

	entry := newLogger("quiet", Config{}, "", true)
	assert.Equal(t, io.Discard, entry.Logger.Out)
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Field("story", "button--primary")
	p.Phase("button--primary", "rendered")
	p.Code("{\n  \"a\": 1\n}\n")

	out := buf.String()
	assert.Contains(t, out, "button--primary")
	assert.Contains(t, out, "rendered")
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "Storyview Logging Configuration")
	for _, key := range []string{`"level"`, `"file"`, `"structured_to_stderr"`} {
		assert.Contains(t, out, key)
	}
}
