package cmd

import (
	"fmt"
	"os"

	"github.com/corey/pepvalid/internal/adapters/console"
	"github.com/spf13/cobra"
)

var (
	importFastaFlag   string
	importSpectraFlag string
)

var importCmd = &cobra.Command{
	Use:   "import [flags] <results.tsv ...>",
	Short: "Import search engine results",
	Long:  "Reads tab-separated search engine output into the project database. Peptides the engines left unmapped are located in the sequence database.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importFastaFlag, "fasta", "", "FASTA sequence database (remembered across runs)")
	f.StringVar(&importSpectraFlag, "spectra", "", "Directory of MGF spectrum files (remembered across runs)")
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// A sequence database is optional at import time: rows that already
	// carry accessions need no scan.
	if importFastaFlag != "" || a.Info.FastaPath != "" {
		if err := a.LoadSequences(importFastaFlag); err != nil {
			return err
		}
	}
	if err := a.LoadSpectra(importSpectraFlag); err != nil {
		return err
	}

	progress := console.NewProgress(os.Stdout, resolveColor(colorFlag, noColorFlag), quietFlag)
	stats, err := a.ImportResults(args, progress)
	if err != nil {
		return err
	}

	for _, path := range args {
		if !containsPath(a.Info.ResultFiles, path) {
			a.Info.ResultFiles = append(a.Info.ResultFiles, path)
		}
	}
	if err := a.SaveState(); err != nil {
		return err
	}

	if !quietFlag {
		fmt.Printf("▸ imported %d files: %d rows, %d assumptions, %d new spectra\n",
			stats.Files, stats.Rows, stats.Assumptions, stats.NewSpectra)
		if stats.Resolved > 0 {
			fmt.Printf("  %d peptides mapped by sequence database scan\n", stats.Resolved)
		}
		if a.Sequences != nil {
			fmt.Printf("  sequence database: %d targets\n", a.Sequences.NTargets())
		}
	}
	return nil
}

func containsPath(paths []string, p string) bool {
	for _, q := range paths {
		if q == p {
			return true
		}
	}
	return false
}
