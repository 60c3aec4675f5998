package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// DaemonAnnotation marks commands that only work against a running daemon.
const DaemonAnnotation = "storyview/daemon"

// HelpExtrasFunc renders additional help sections after COMMANDS.
type HelpExtrasFunc func(w io.Writer, t *Theme)

var (
	helpExtras   = make(map[*cobra.Command]HelpExtrasFunc)
	helpExtrasMu sync.RWMutex
)

const (
	helpWidth    = 72
	minHelpWidth = 40
)

// RequireDaemon annotates cmd so help output says it needs `storyview serve`.
func RequireDaemon(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[DaemonAnnotation] = "required"
	return cmd
}

func requiresDaemon(cmd *cobra.Command) bool {
	return cmd.Annotations[DaemonAnnotation] == "required"
}

// SetStyledHelp installs the styled help on cmd.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// SetStyledHelpWithExtras installs the styled help with extra sections.
func SetStyledHelpWithExtras(cmd *cobra.Command, extras HelpExtrasFunc) {
	helpExtrasMu.Lock()
	helpExtras[cmd] = extras
	helpExtrasMu.Unlock()
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive installs the styled help on cmd and every
// subcommand. Call it after all subcommands are added.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	// Errors are reported by main; cobra's usage dump is noise.
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// PrintError prints err with a pointer to --help.
func PrintError(cmd *cobra.Command, err error) {
	t := DefaultTheme
	red := lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Red)
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", red.Render("Error:"), err.Error())
	fmt.Fprintln(cmd.ErrOrStderr(), t.Muted.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
}

// outputWidth is the terminal width of w capped at helpWidth, or helpWidth
// when w is not a terminal.
func outputWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return helpWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < minHelpWidth || width > helpWidth {
		return helpWidth
	}
	return width
}

// wrapText word-wraps text to width. Existing line breaks are kept.
func wrapText(text string, width int) string {
	if width <= 0 {
		width = helpWidth
	}
	return wordwrap.String(text, width)
}

// splitExamples separates a trailing "Examples:" block from a long description.
func splitExamples(long string) (description, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

// parseChoices splits "Label: a, b, or c" into "Label:" and its choices.
// Usage strings with fewer than three comma-separated items are left alone.
func parseChoices(usage string) (description string, choices []string) {
	colon := strings.Index(usage, ": ")
	if colon == -1 {
		return usage, nil
	}
	list, suffix := usage[colon+2:], ""
	if paren := strings.Index(list, " ("); paren != -1 {
		list, suffix = list[:paren], list[paren:]
	}
	parts := strings.Split(list, ", ")
	if len(parts) < 3 {
		return usage, nil
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.TrimPrefix(p, "or "))
	}
	return usage[:colon+1] + suffix, parts
}

// helpPrinter renders one command's help.
type helpPrinter struct {
	w       io.Writer
	t       *Theme
	width   int
	section lipgloss.Style
	name    lipgloss.Style
	flag    lipgloss.Style
}

func newHelpPrinter(w io.Writer) *helpPrinter {
	t := DefaultTheme
	return &helpPrinter{
		w:       w,
		t:       t,
		width:   outputWidth(w) - 2,
		section: lipgloss.NewStyle().Italic(true).Foreground(t.Colors.Orange),
		name:    lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Blue),
		flag:    lipgloss.NewStyle().Foreground(t.Colors.Violet),
	}
}

func (p *helpPrinter) heading(name string) {
	fmt.Fprintln(p.w, "\n "+p.section.Render(name))
}

func (p *helpPrinter) paragraph(text string, style *lipgloss.Style) {
	for _, line := range strings.Split(wrapText(text, p.width), "\n") {
		if style != nil {
			line = style.Render(line)
		}
		fmt.Fprintln(p.w, " "+line)
	}
}

func (p *helpPrinter) commands(cmd *cobra.Command) {
	var subs []*cobra.Command
	pad := 0
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			subs = append(subs, sub)
			pad = max(pad, len(sub.Name()))
		}
	}
	if len(subs) == 0 {
		return
	}
	p.heading("COMMANDS")
	marked := false
	for _, sub := range subs {
		line := fmt.Sprintf(" %s%s  %s", p.name.Render(sub.Name()), strings.Repeat(" ", pad-len(sub.Name())), sub.Short)
		if requiresDaemon(sub) {
			line += p.t.Muted.Render(" *")
			marked = true
		}
		fmt.Fprintln(p.w, line)
	}
	if marked {
		fmt.Fprintln(p.w, " "+p.t.Muted.Render("* needs a running daemon (storyview serve)"))
	}
}

func (p *helpPrinter) flags(cmd *cobra.Command) {
	var visible []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			visible = append(visible, f)
		}
	})
	if len(visible) == 0 {
		return
	}

	if cmd.HasAvailableSubCommands() {
		names := make([]string, 0, len(visible))
		for _, f := range visible {
			names = append(names, strings.TrimSpace(flagName(f)))
		}
		fmt.Fprintln(p.w, "\n "+p.t.Muted.Render("Flags: "+strings.Join(names, ", ")))
		return
	}

	p.heading("FLAGS")
	pad := 0
	for _, f := range visible {
		pad = max(pad, len(flagName(f)))
	}
	for _, f := range visible {
		name := flagName(f)
		usage, choices := parseChoices(f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" && f.DefValue != "0" {
			usage += p.t.Muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
		}
		fmt.Fprintf(p.w, " %s%s  %s\n", p.flag.Render(name), strings.Repeat(" ", pad-len(name)), usage)
		for _, c := range choices {
			fmt.Fprintf(p.w, " %s  %s\n", strings.Repeat(" ", pad), p.t.Muted.Render("• "+c))
		}
	}
}

func (p *helpPrinter) examples(cmd *cobra.Command, text string) {
	root := cmd.Root().Name()
	sub := lipgloss.NewStyle().Foreground(p.t.Colors.Cyan)
	p.heading("EXAMPLES")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			fmt.Fprintln(p.w)
		case strings.HasPrefix(line, "#"):
			fmt.Fprintln(p.w, " "+p.t.Muted.Render(line))
		default:
			words := strings.Fields(line)
			for i, word := range words {
				switch {
				case i == 0 && word == root:
					words[i] = p.name.Render(word)
				case strings.HasPrefix(word, "-"):
					words[i] = p.flag.Render(word)
				case i == 1:
					words[i] = sub.Render(word)
				}
			}
			fmt.Fprintln(p.w, "   "+strings.Join(words, " "))
		}
	}
}

func styledHelpFunc(cmd *cobra.Command, _ []string) {
	p := newHelpPrinter(cmd.OutOrStdout())
	title := lipgloss.NewStyle().Bold(true).Foreground(p.t.Colors.Orange)
	fmt.Fprintln(p.w, " "+title.Render(strings.ToUpper(cmd.CommandPath())))

	description, examples := splitExamples(cmd.Long)
	if cmd.Short != "" {
		p.paragraph(cmd.Short, &p.t.Italic)
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(p.w)
		p.paragraph(description, nil)
	}
	if requiresDaemon(cmd) {
		fmt.Fprintln(p.w)
		p.paragraph("Requires a running daemon; start one with 'storyview serve'.", &p.t.Muted)
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		p.heading("USAGE")
		if cmd.Runnable() {
			fmt.Fprintf(p.w, " %s\n", cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			fmt.Fprintf(p.w, " %s [command]\n", cmd.CommandPath())
		}
	}

	p.commands(cmd)
	p.flags(cmd)

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		p.examples(cmd, examples)
	}

	helpExtrasMu.RLock()
	extras := helpExtras[cmd]
	helpExtrasMu.RUnlock()
	if extras != nil {
		extras(p.w, p.t)
	}

	if cmd.HasSubCommands() {
		fmt.Fprintf(p.w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

// flagName formats "-f, --flag", aligning long-only flags with short ones.
func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}
