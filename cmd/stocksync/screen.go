package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var screenBoard string

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "List board symbols whose last closes rose every session",
	RunE:  runScreen,
}

func init() {
	screenCmd.Flags().StringVar(&screenBoard, "board", "", "symbol prefix of the board to screen (default from config)")
	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx, a, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := a.Screen(ctx, screenBoard)
	if err != nil {
		return err
	}
	for _, h := range res.Hits {
		fmt.Printf("%s\t%s\n", h.Symbol, h.Name)
	}
	fmt.Printf("%d of %d symbols flagged, written to %s\n", len(res.Hits), res.Candidates, res.Path)
	return nil
}
