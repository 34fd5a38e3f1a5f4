package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configDir, dbPath string

	root := &cobra.Command{
		Use:           "studioctl",
		Short:         "Manage novel studio projects offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "configs", "Configuration directory")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides storage.sqlite.path)")

	ctx := newCommandContext(&configDir, &dbPath)

	root.AddCommand(newListCommand(ctx))
	root.AddCommand(newImportCommand(ctx))
	root.AddCommand(newExportCommand(ctx))
	root.AddCommand(newAuditCommand(ctx))
	root.AddCommand(newRangesCommand())

	return root
}
