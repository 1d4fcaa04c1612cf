package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sadsciencee/modalkit/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit modalkit configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.flags(cmd); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.configPath())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.setup(cmd, true); err != nil {
					return err
				}
				defer a.close()
				data, err := json.MarshalIndent(a.cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one key from the config file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.flags(cmd); err != nil {
					return err
				}
				value, ok, err := config.GetField(a.configPath(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is not set in %s", args[0], a.configPath())
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set one key in the config file",
			Example: `  modalkit config set relay.url ws://127.0.0.1:9000/ws
  modalkit config set journal.enabled false`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.flags(cmd); err != nil {
					return err
				}
				value, err := config.ParseValue(args[0], args[1])
				if err != nil {
					return err
				}
				if err := config.SetFieldInFile(a.configPath(), args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], a.configPath())
				return nil
			},
		},
	)
	return cmd
}
