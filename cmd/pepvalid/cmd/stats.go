package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show project statistics",
	Long:  "Prints the persisted validation results and dataset figures without recomputing anything.",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	metrics, err := a.Store.LoadMetrics()
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	maps, err := a.Store.LoadScoreMaps()
	if err != nil {
		return fmt.Errorf("load score maps: %w", err)
	}

	fmt.Print(formatStats(a.Info, a.Params, metrics, maps, resolveColor(colorFlag, noColorFlag)))
	return nil
}
