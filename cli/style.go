package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette is the set of colors used by styled help and status output.
type Palette struct {
	Red    lipgloss.AdaptiveColor
	Green  lipgloss.AdaptiveColor
	Yellow lipgloss.AdaptiveColor
	Orange lipgloss.AdaptiveColor
	Cyan   lipgloss.AdaptiveColor
	Blue   lipgloss.AdaptiveColor
	Violet lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor
}

// Theme bundles the palette with the text styles built from it.
type Theme struct {
	Colors Palette
	Muted  lipgloss.Style
	Italic lipgloss.Style
	Bold   lipgloss.Style
}

// DefaultTheme uses the Kanagawa palette, with the Wave variant on light terminals.
var DefaultTheme = newTheme(Palette{
	Red:    lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
	Green:  lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
	Yellow: lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
	Orange: lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
	Cyan:   lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
	Blue:   lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
	Violet: lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"},
	Muted:  lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
})

func newTheme(p Palette) *Theme {
	return &Theme{
		Colors: p,
		Muted:  lipgloss.NewStyle().Foreground(p.Muted),
		Italic: lipgloss.NewStyle().Italic(true),
		Bold:   lipgloss.NewStyle().Bold(true),
	}
}

// DisableColorIfRequested drops to plain text when NO_COLOR is set, or when
// CLICOLOR=0 on a terminal that would otherwise get colors.
func DisableColorIfRequested() {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
