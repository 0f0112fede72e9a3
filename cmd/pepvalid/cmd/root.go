package cmd

import (
	"fmt"
	"os"

	"github.com/corey/pepvalid/internal/app"
	"github.com/spf13/cobra"
)

var (
	projectFlag string
	colorFlag   string
	noColorFlag bool
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:           "pepvalid",
	Short:         "pepvalid — target/decoy validation of peptide identifications",
	Long:          "Consensus PSM selection, hierarchical FDR control, protein inference, and PTM site localization over search engine results.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// projectRoot returns the project root (--project, or cwd by default).
func projectRoot() string {
	if projectFlag != "" {
		return projectFlag
	}
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// openApp opens the project database under the resolved project root.
func openApp() (*app.App, error) {
	root := projectRoot()
	a, err := app.New(app.Config{ProjectRoot: root})
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%s", diagnoseDBLock(root))
		}
		return nil, err
	}
	return a, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&projectFlag, "project", "", "Project directory (default: current directory)")
	pf.StringVar(&colorFlag, "color", "auto", "Color output: auto, always, never")
	pf.BoolVar(&noColorFlag, "no-color", false, "Disable color output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress and summaries")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(trainingCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}
