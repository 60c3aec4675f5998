package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/storyview/cli"
	"github.com/grovetools/storyview/logging"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/daemon"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/selection"
	"github.com/spf13/cobra"
)

// RootHelpExtras lists the environment the tool reads, below the command list.
func RootHelpExtras(w io.Writer, t *cli.Theme) {
	section := lipgloss.NewStyle().Italic(true).Foreground(t.Colors.Orange)
	fmt.Fprintln(w, "\n "+section.Render("ENVIRONMENT"))
	for _, line := range []string{
		"STORYVIEW_LOG_LEVEL   log level (debug, info, warn, error)",
		"STORYVIEW_LOG_CALLER  report the calling function in logs",
		"STORYVIEW_DEBUG       copy logs to stderr",
		"NO_COLOR              disable colored output",
	} {
		fmt.Fprintln(w, " "+t.Muted.Render(line))
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// dispatch sends one command to the running daemon.
func dispatch(cmd *cobra.Command, operation string, c channel.Command) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := daemon.Connect(cfg, operation)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Dispatch(cmd.Context(), c)
}

// NewSelectCmd returns the command that changes the displayed story.
func NewSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <story-id>",
		Short: "Show a story in the running preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewMode, _ := cmd.Flags().GetString("view-mode")
			return dispatch(cmd, "selecting a story", channel.Command{
				Type: channel.CommandSetCurrentStory,
				Selection: &channel.SelectionRequest{
					StoryID:  args[0],
					ViewMode: models.ViewMode(viewMode),
				},
			})
		},
	}
	cmd.Flags().String("view-mode", "story", "View mode: story or docs")
	return cli.RequireDaemon(cmd)
}

// NewArgsCmd returns the command that updates or resets a story's args.
func NewArgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "args <story-id> [key:value;key:value]",
		Short: "Update or reset the args of a rendered story",
		Long: `Values use the preview URL syntax: !true, !false and !null are literals,
!undefined removes the arg.

Examples:
  storyview args example-button--primary 'label:Go;disabled:!true'
  storyview args example-button--primary --reset label`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetStringSlice("reset")
			if cmd.Flags().Changed("reset") {
				return dispatch(cmd, "resetting args", channel.Command{
					Type:     channel.CommandResetArgs,
					StoryID:  args[0],
					ArgNames: reset,
				})
			}
			if len(args) < 2 {
				return fmt.Errorf("args requires key:value pairs or --reset")
			}
			return dispatch(cmd, "updating args", channel.Command{
				Type:    channel.CommandUpdateArgs,
				StoryID: args[0],
				Args:    models.Args(selection.ParseArgsParam(args[1])),
			})
		},
	}
	cmd.Flags().StringSlice("reset", nil, "Reset the named args to their initial values (all when empty)")
	return cli.RequireDaemon(cmd)
}

// NewGlobalsCmd returns the command that updates globals.
func NewGlobalsCmd() *cobra.Command {
	return cli.RequireDaemon(&cobra.Command{
		Use:   "globals <key:value;key:value>",
		Short: "Update globals in the running preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, "updating globals", channel.Command{
				Type:    channel.CommandUpdateGlobals,
				Globals: models.Globals(selection.ParseArgsParam(args[0])),
			})
		},
	})
}

// NewRemountCmd returns the command that remounts the current story.
func NewRemountCmd() *cobra.Command {
	return cli.RequireDaemon(&cobra.Command{
		Use:   "remount [story-id]",
		Short: "Remount the current story from scratch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := channel.Command{Type: channel.CommandForceRemount}
			if len(args) == 1 {
				c.StoryID = args[0]
			}
			return dispatch(cmd, "remounting", c)
		},
	})
}

// NewWatchCmd returns the command that follows the daemon's events.
func NewWatchCmd() *cobra.Command {
	return cli.RequireDaemon(&cobra.Command{
		Use:   "watch",
		Short: "Follow preview events and render phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client, err := daemon.Connect(cfg, "watching events")
			if err != nil {
				return err
			}
			defer client.Close()

			updates, err := client.StreamState(cmd.Context())
			if err != nil {
				return err
			}
			jsonOutput := cli.GetOptions(cmd).JSONOutput
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			for u := range updates {
				if jsonOutput {
					if err := json.NewEncoder(cmd.OutOrStdout()).Encode(u); err != nil {
						return err
					}
					continue
				}
				printUpdate(pretty, u)
			}
			return nil
		},
	})
}

func printUpdate(pretty *logging.PrettyLogger, u daemon.StreamUpdate) {
	switch {
	case u.State != nil:
		pretty.Field("Display", string(u.State.Display.Mode))
	case u.Event != nil && u.Event.Type == channel.EventStoryRenderPhaseChanged:
		if p, ok := u.Event.Payload.(map[string]interface{}); ok {
			pretty.Phase(u.Event.StoryID, fmt.Sprint(p["newPhase"]))
		}
	case u.Event != nil:
		pretty.Field(string(u.Event.Type), u.Event.StoryID)
	case u.Display != nil:
		pretty.Field("Display", string(u.Display.Mode))
	case u.Sources != nil:
		pretty.Field("Stories", u.Sources.Stories)
	case u.ConfigFile != "":
		pretty.Path("Reloaded", u.ConfigFile)
	}
}

// NewRenderCmd returns the command that prints the main element's content.
func NewRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Print the content of the element in the main area",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg, cli.GetLogger(cmd, "render"))
			defer client.Close()

			snap, err := client.Render(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd, snap)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			pretty.Field("Element", snap.Name)
			pretty.Field("Renders", snap.Renders)
			var doc interface{}
			if err := json.Unmarshal(snap.Content, &doc); err == nil {
				data, _ := json.MarshalIndent(doc, "", "  ")
				pretty.Code(string(data))
			}
			return nil
		},
	}
}

// NewExtractCmd returns the command that writes the story catalog.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Load every indexed story and write the catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client := daemon.New(cfg, cli.GetLogger(cmd, "extract"))
			defer client.Close()

			docsOnly, _ := cmd.Flags().GetBool("docs-only")
			stories, err := client.Extract(cmd.Context(), docsOnly)
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" || output == "-" {
				if cli.GetOptions(cmd).JSONOutput {
					return writeJSON(cmd, stories)
				}
				ids := make([]string, 0, len(stories))
				for id := range stories {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, strings.Join([]string{stories[id].Title, stories[id].Name}, " / "))
				}
				return nil
			}

			data, err := json.MarshalIndent(stories, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).
				Success(fmt.Sprintf("Wrote %d stories to %s", len(stories), output))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the catalog to a file instead of listing ids")
	cmd.Flags().Bool("docs-only", false, "Include docs-only entries")
	return cmd
}
