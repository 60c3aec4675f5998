package main

import (
	"os"

	"github.com/grovetools/storyview/cli"
	"github.com/grovetools/storyview/cmd"
	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/pkg/profiling"
	"github.com/grovetools/storyview/version"
)

func main() {
	cli.DisableColorIfRequested()

	rootCmd := cli.NewStandardCommand(
		"storyview",
		"Live preview host for component stories",
	)
	cli.SetVersionTemplate(rootCmd, version.GetInfo())
	profiling.NewCobraProfiler().AddFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewStopCmd())
	rootCmd.AddCommand(cmd.NewStatusCmd())
	rootCmd.AddCommand(cmd.NewSelectCmd())
	rootCmd.AddCommand(cmd.NewArgsCmd())
	rootCmd.AddCommand(cmd.NewGlobalsCmd())
	rootCmd.AddCommand(cmd.NewRemountCmd())
	rootCmd.AddCommand(cmd.NewWatchCmd())
	rootCmd.AddCommand(cmd.NewRenderCmd())
	rootCmd.AddCommand(cmd.NewExtractCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("storyview"))

	cli.SetStyledHelpWithExtras(rootCmd, cmd.RootHelpExtras)
	for _, sub := range rootCmd.Commands() {
		cli.ApplyStyledHelpRecursive(sub)
	}

	if err := rootCmd.Execute(); err != nil {
		// Usage mistakes carry no error code and get the help hint.
		if errors.GetCode(err) == "" {
			cli.PrintError(rootCmd, err)
		} else {
			verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
			cli.NewErrorHandler(verbose).Handle(err)
		}
		os.Exit(1)
	}
}
