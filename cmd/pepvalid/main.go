// pepvalid validates peptide and protein identifications statistically.
// Single binary over a per-project database: import, validate, report.
package main

import (
	"fmt"
	"os"

	"github.com/corey/pepvalid/cmd/pepvalid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
