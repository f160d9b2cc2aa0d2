package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, log, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := a.Migrate(ctx); err != nil {
			return err
		}
		log.Info("migration complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
