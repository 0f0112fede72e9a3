package cmd

import (
	"fmt"
	"os"

	"github.com/corey/pepvalid/internal/adapters/console"
	"github.com/corey/pepvalid/internal/app"
	"github.com/spf13/cobra"
)

var reportOutFlag string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export tab-separated identification reports",
	Long:  "Writes PSM, peptide, and protein group reports from the validated project state.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportOutFlag, "out", "", "Output directory (default .pepvalid/report)")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Descriptions and molecular weights need the sequence database; the
	// protein report degrades to blank columns without it.
	if a.Info.FastaPath != "" {
		if err := a.LoadSequences(""); err != nil {
			return err
		}
	}

	outDir := reportOutFlag
	if outDir == "" {
		outDir = a.Paths.ReportDir
	}

	progress := console.NewProgress(os.Stdout, resolveColor(colorFlag, noColorFlag), quietFlag)
	stats, err := a.ExportReport(outDir, progress)
	if err != nil {
		return err
	}

	if !quietFlag {
		fmt.Printf("▸ report written to %s\n", stats.Dir)
		fmt.Printf("  %s: %d rows\n", app.PsmReportFile, stats.Psms)
		fmt.Printf("  %s: %d rows\n", app.PeptideReportFile, stats.Peptides)
		fmt.Printf("  %s: %d rows\n", app.ProteinReportFile, stats.Proteins)
	}
	return nil
}
