package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PrettyLogger prints human-facing CLI output next to the structured logs.
// Styles degrade to plain text when the writer is not a color terminal.
type PrettyLogger struct {
	writer io.Writer
	styles PrettyStyles
}

// PrettyStyles holds the styles for each kind of line.
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
	Code    lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultPrettyStyles returns adaptive styles readable on light and dark terminals.
func DefaultPrettyStyles() PrettyStyles {
	color := func(light, dark string) lipgloss.AdaptiveColor {
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}
	return PrettyStyles{
		Success: lipgloss.NewStyle().Bold(true).Foreground(color("#4E7C5A", "#98BB6C")),
		Info:    lipgloss.NewStyle().Foreground(color("#4F7CAC", "#7FB4CA")),
		Warning: lipgloss.NewStyle().Foreground(color("#A68A64", "#FF9E3B")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(color("#C34043", "#FF5D62")),
		Key:     lipgloss.NewStyle().Foreground(color("#8A8980", "#727169")),
		Value:   lipgloss.NewStyle().Bold(true).Foreground(color("#5B8BBE", "#7E9CD8")),
		Path:    lipgloss.NewStyle().Italic(true).Foreground(color("#6693BF", "#6A9589")),
		Code:    lipgloss.NewStyle().Foreground(color("#674D7A", "#957FB8")),
		Muted:   lipgloss.NewStyle().Foreground(color("#8A8980", "#727169")),
	}
}

// NewPrettyLogger returns a PrettyLogger writing to stderr.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{writer: os.Stderr, styles: DefaultPrettyStyles()}
}

// WithWriter redirects output, usually to cmd.OutOrStdout().
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	return p
}

func (p *PrettyLogger) mark(icon string, style lipgloss.Style, message string) {
	fmt.Fprintln(p.writer, style.Render(icon+" "+message))
}

func (p *PrettyLogger) Success(message string) { p.mark("✓", p.styles.Success, message) }

func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintln(p.writer, p.styles.Info.Render(message))
}

func (p *PrettyLogger) WarnPretty(message string) { p.mark("⚠", p.styles.Warning, message) }

// ErrorPretty prints message and, if set, err after a colon.
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	if err != nil {
		message += ": " + err.Error()
	}
	p.mark("✗", p.styles.Error, message)
}

// Field prints "key: value".
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.styles.Key.Render(key), p.styles.Value.Render(fmt.Sprint(value)))
}

func (p *PrettyLogger) Path(label, path string) {
	fmt.Fprintf(p.writer, "%s: %s\n", p.styles.Key.Render(label), p.styles.Path.Render(path))
}

// Phase prints a render unit's phase, coloured by outcome. Phases are passed
// as strings so this package stays free of the render types.
func (p *PrettyLogger) Phase(storyID, phase string) {
	style := p.styles.Info
	switch phase {
	case "rendered", "playing":
		style = p.styles.Success
	case "errored":
		style = p.styles.Error
	case "torn_down":
		style = p.styles.Muted
	}
	fmt.Fprintf(p.writer, "  %s %s\n", p.styles.Value.Render(storyID), style.Render(phase))
}

// Code prints a rendered document, indented two spaces.
func (p *PrettyLogger) Code(content string) {
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintln(p.writer, "  "+p.styles.Code.Render(line))
	}
}

func (p *PrettyLogger) Divider() {
	fmt.Fprintln(p.writer, p.styles.Muted.Render(strings.Repeat("─", 60)))
}

func (p *PrettyLogger) Blank() {
	fmt.Fprintln(p.writer)
}
