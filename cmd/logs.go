package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/storyview/cli"
	"github.com/grovetools/storyview/logging"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [component]",
		Short: "Show the log file of a storyview component",
		Long: `Prints today's log file of a component (the daemon by default).

Examples:
  # Follow the daemon log
  storyview logs -f

  # Last 50 lines of the extract log
  storyview logs extract --tail 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().Bool("path", false, "Print the log file path and exit")
	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	component := "daemon"
	if len(args) == 1 {
		component = args[0]
	}

	path, err := logging.DefaultFilePath(component)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("file logging is disabled for %s", component)
	}
	if printPath, _ := cmd.Flags().GetBool("path"); printPath {
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}

	follow, _ := cmd.Flags().GetBool("follow")
	tailLines, _ := cmd.Flags().GetInt("tail")

	offset := int64(0)
	if tailLines >= 0 {
		if offset, err = tailOffset(path, tailLines); err != nil && !(follow && os.IsNotExist(err)) {
			return err
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: !follow,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer t.Cleanup()

	cli.GetLogger(cmd, "logs").WithField("log_file", path).Debug("Tailing log file")

	out := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(out, line.Text)
		}
	}
}

// tailOffset returns the byte offset where the last n lines of path begin.
func tailOffset(path string, n int) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	// Ring of line start offsets; the oldest entry is where output begins.
	starts := make([]int64, 0, n+1)
	var pos int64
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			starts = append(starts, pos)
			if len(starts) > n {
				starts = starts[1:]
			}
			pos += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if len(starts) == 0 {
		return pos, nil
	}
	return starts[0], nil
}
