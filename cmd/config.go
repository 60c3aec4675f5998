package cmd

import (
	"fmt"

	"github.com/grovetools/storyview/cli"
	"github.com/grovetools/storyview/config"
	"github.com/grovetools/storyview/errors"
	"github.com/grovetools/storyview/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd returns the `config` command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the storyview configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with defaults applied",
		Long: `Shows the configuration the preview would run with: storyview.yml merged
with any storyview.override.yml next to it, then defaults.
This is useful for debugging configuration issues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd, cfg)
			}
			if cfg.Path() != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", cfg.Path())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "# No storyview.yml found; defaults only")
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	var extension string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of storyview.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			switch extension {
			case "":
				data, err = config.GenerateSchema()
			case "logging":
				data, err = logging.GenerateSchema()
			default:
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown extension %q", extension)).
					WithDetail("known", []string{"logging"})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&extension, "extension", "", "Print the schema of an extension section instead (logging)")
	return cmd
}
