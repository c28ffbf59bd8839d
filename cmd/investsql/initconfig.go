package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"investsql/internal/config"
)

func newInitConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Default().Save(path); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Config written to: %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
