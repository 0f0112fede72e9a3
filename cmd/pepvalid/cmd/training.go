package cmd

import (
	"fmt"
	"os"

	"github.com/corey/pepvalid/internal/adapters/console"
	"github.com/spf13/cobra"
)

var (
	trainingOutFlag        string
	trainingConfidenceFlag float64
)

var trainingCmd = &cobra.Command{
	Use:   "training",
	Short: "Export de novo training spectra",
	Long:  "Partitions the spectra into a confidently identified set (SEQ-tagged) and a hopeless set, as training input for de novo sequencing.",
	RunE:  runTraining,
}

func init() {
	f := trainingCmd.Flags()
	f.StringVar(&trainingOutFlag, "out", "", "Output directory (default .pepvalid/training)")
	f.Float64Var(&trainingConfidenceFlag, "confidence", 0, "Percent confidence bound (overrides the stored setting)")
}

func runTraining(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("confidence") {
		a.Params.TrainingConfidence = trainingConfidenceFlag
	}
	if err := a.LoadSpectra(""); err != nil {
		return err
	}

	outDir := trainingOutFlag
	if outDir == "" {
		outDir = a.Paths.TrainingDir
	}

	progress := console.NewProgress(os.Stdout, resolveColor(colorFlag, noColorFlag), quietFlag)
	stats, err := a.ExportTraining(outDir, a.Params.TrainingConfidence, progress)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("confidence") {
		if err := a.SaveState(); err != nil {
			return err
		}
	}

	if !quietFlag {
		fmt.Printf("▸ training export at %s%% confidence\n", trimFloat(a.Params.TrainingConfidence))
		fmt.Printf("  %s: %d spectra\n", stats.GoodPath, stats.Good)
		fmt.Printf("  %s: %d spectra\n", stats.BadPath, stats.Bad)
		if stats.Skipped > 0 {
			fmt.Printf("  %d spectra without a usable identification skipped\n", stats.Skipped)
		}
	}
	return nil
}
