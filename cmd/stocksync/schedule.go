package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the configured jobs on the schedule and serve metrics",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, a, log, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Migrate(ctx); err != nil {
		return err
	}
	log.Info("starting stocksync scheduler", zap.Strings("sources", a.Sources()))
	return a.Schedule(ctx)
}
