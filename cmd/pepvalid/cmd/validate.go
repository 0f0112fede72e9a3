package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/corey/pepvalid/internal/adapters/console"
	"github.com/spf13/cobra"
)

var validateFDRFlag float64

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the statistical validation pipeline",
	Long:  "Estimates posterior error probabilities, picks consensus PSMs, builds peptides and protein groups, thresholds every level at the FDR, and localizes modification sites.",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().Float64Var(&validateFDRFlag, "fdr", 0, "FDR threshold in percent (overrides the stored setting)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("fdr") {
		a.Params.FDR = validateFDRFlag
	}
	// Both providers are optional: without sequences the report loses
	// descriptions and weights, without spectra the localization loses
	// fragment evidence.
	if a.Info.FastaPath != "" {
		if err := a.LoadSequences(""); err != nil {
			return err
		}
	}
	if err := a.LoadSpectra(""); err != nil {
		return err
	}

	color := resolveColor(colorFlag, noColorFlag)
	progress := console.NewProgress(os.Stdout, color, quietFlag)

	// The first interrupt requests a stop at the next stage boundary; a
	// second one falls back to the default handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		progress.Cancel()
		signal.Stop(sigCh)
	}()

	pipeline := a.NewPipeline(progress)
	if err := pipeline.Run(); err != nil {
		return err
	}

	if progress.Canceled() {
		if !quietFlag {
			notice := "canceled — partial state saved, rerun to finish"
			if color {
				fmt.Printf("%s%s%s\n", colorYellow, notice, colorReset)
			} else {
				fmt.Println(notice)
			}
		}
		return nil
	}

	a.Info.RunFinished = true
	if err := a.SaveState(); err != nil {
		return err
	}

	if !quietFlag {
		fmt.Print(formatRunSummary(pipeline.PsmResults(), pipeline.PeptideResults(), pipeline.ProteinResults(), a.Params.FDR, color))
	}
	return nil
}
