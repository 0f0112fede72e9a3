package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/corey/pepvalid/internal/app"
	"github.com/spf13/cobra"
)

var (
	initFDRFlag   float64
	initDecoyFlag []string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a validation project",
	Long:  "Creates the .pepvalid directory and the project database with default parameters.",
	RunE:  runInit,
}

func init() {
	f := initCmd.Flags()
	f.Float64Var(&initFDRFlag, "fdr", 1, "FDR threshold in percent")
	f.StringSliceVar(&initDecoyFlag, "decoy-flag", nil, "Decoy accession flag (repeatable; default REVERSED,REV,DECOY,RND)")
}

func runInit(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("create .pepvalid dirs: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("fdr") {
		a.Params.FDR = initFDRFlag
	}
	if len(initDecoyFlag) > 0 {
		a.Params.DecoyFlags = initDecoyFlag
	}
	if a.Info.CreatedAt == 0 {
		a.Info.CreatedAt = time.Now().Unix()
	}

	if err := a.SaveState(); err != nil {
		a.Close()
		return err
	}
	if err := a.Close(); err != nil {
		return err
	}

	if !quietFlag {
		fmt.Printf("▸ project %s initialized (%s%% FDR, decoy flags: %s)\n",
			a.Info.Name, trimFloat(a.Params.FDR), strings.Join(a.Params.DecoyFlags, ", "))
	}
	return nil
}
