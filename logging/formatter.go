package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// StoryField is the entry field naming the story a log line is about.
const StoryField = "story_id"

var (
	componentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"})
	storyStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"})
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"})
)

// TextFormatter renders entries as
//
//	2006-01-02 15:04:05 [LEVEL] [component] [story] message key=value error=...
//
// Remaining fields are sorted; the error always comes last.
type TextFormatter struct {
	Config FormatConfig
}

func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05 "))
	}

	level := entry.Level.String()
	if entry.Level == logrus.WarnLevel {
		level = "warn"
	}
	fmt.Fprintf(&b, "[%s]", strings.ToUpper(level))

	if component, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		fmt.Fprintf(&b, " [%s]", componentStyle.Render(fmt.Sprint(component)))
	}
	if story, ok := entry.Data[StoryField]; ok {
		fmt.Fprintf(&b, " [%s]", storyStyle.Render(fmt.Sprint(story)))
	}
	if entry.HasCaller() {
		fmt.Fprintf(&b, " [%s:%d %s]", filepath.Base(entry.Caller.File), entry.Caller.Line, filepath.Base(entry.Caller.Function))
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		switch key {
		case "component", StoryField, logrus.ErrorKey:
		default:
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, entry.Data[key])
	}
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		b.WriteString(" " + errorStyle.Render(fmt.Sprintf("%s=%v", logrus.ErrorKey, err)))
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}
