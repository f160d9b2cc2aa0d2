package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/app"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/ingest"
)

var (
	syncInit  bool
	syncSpans []int
)

type syncFunc func(ctx context.Context, a *app.App) (*ingest.Report, error)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import missing market data",
}

var syncDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Sync daily bars (today, or recent sessions with --init)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(func(ctx context.Context, a *app.App) (*ingest.Report, error) {
			return a.SyncDaily(ctx, syncInit)
		})
	},
}

var syncFundFlowCmd = &cobra.Command{
	Use:   "fundflow",
	Short: "Sync per-symbol money flow history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(func(ctx context.Context, a *app.App) (*ingest.Report, error) {
			return a.SyncFundFlow(ctx)
		})
	},
}

var syncMoneyFlowCmd = &cobra.Command{
	Use:   "moneyflow",
	Short: "Sync money flow ranking snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		spans, err := app.ParseSpans(syncSpans)
		if err != nil {
			return err
		}
		return runSync(func(ctx context.Context, a *app.App) (*ingest.Report, error) {
			return a.SyncMoneyFlow(ctx, spans)
		})
	},
}

var syncFinancialCmd = &cobra.Command{
	Use:   "financial",
	Short: "Sync financial report abstracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(func(ctx context.Context, a *app.App) (*ingest.Report, error) {
			return a.SyncFinancial(ctx)
		})
	},
}

var syncBasicCmd = &cobra.Command{
	Use:   "basic",
	Short: "Refresh basic info from the listing and company profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(func(ctx context.Context, a *app.App) (*ingest.Report, error) {
			return a.SyncBasic(ctx)
		})
	},
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run basic, daily, fundflow, moneyflow and financial in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, _, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()
		return a.SyncAll(ctx, syncInit)
	},
}

func init() {
	syncDailyCmd.Flags().BoolVar(&syncInit, "init", false, "load the last sync.init_days sessions instead of today")
	syncAllCmd.Flags().BoolVar(&syncInit, "init", false, "initial load for daily bars")
	syncMoneyFlowCmd.Flags().IntSliceVar(&syncSpans, "span", nil,
		fmt.Sprintf("ranking span in days (%d, %d, %d or %d), repeatable; default from config",
			core.SpanRealtime, core.Span3Day, core.Span5Day, core.Span10Day))

	syncCmd.AddCommand(syncDailyCmd, syncFundFlowCmd, syncMoneyFlowCmd, syncFinancialCmd, syncBasicCmd, syncAllCmd)
	rootCmd.AddCommand(syncCmd)
}

// runSync runs one entity job. The command fails only when the run itself
// could not proceed; per-target failures are in the report.
func runSync(fn syncFunc) error {
	ctx, a, log, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := fn(ctx, a)
	if rep != nil {
		log.Info("sync report", zap.Object("report", rep))
		fmt.Printf("%s: %d targets, %d written, %d skipped, %d failed (%s)\n",
			rep.Entity, rep.Targets, rep.Written, rep.Skipped, rep.Failed(), rep.Status())
	}
	return err
}
