package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/corey/pepvalid/internal/adapters/console"
	"github.com/corey/pepvalid/internal/adapters/fsnotify"
	"github.com/corey/pepvalid/internal/app"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Revalidate when new results arrive",
	Long:  "Watches a drop directory for search engine result files. Each file is imported once writes settle and the full validation pipeline reruns.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Info.FastaPath != "" {
		if err := a.LoadSequences(""); err != nil {
			return err
		}
	}
	if err := a.LoadSpectra(""); err != nil {
		return err
	}

	color := resolveColor(colorFlag, noColorFlag)
	dir := args[0]

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	// The settle timer goroutine blocks on this send until the previous
	// revalidation finishes, so files process strictly one at a time.
	events := make(chan string)
	if err := w.Watch(dir, func(path string) { events <- path }); err != nil {
		w.Stop()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if !quietFlag {
		fmt.Printf("▸ watching %s\n", dir)
	}

	for {
		select {
		case <-sigCh:
			if !quietFlag {
				fmt.Println("\n▸ stopping watch")
			}
			return w.Stop()
		case path := <-events:
			if err := revalidate(a, path, color); err != nil {
				fmt.Fprintf(os.Stderr, "error: %s: %v\n", path, err)
			}
		}
	}
}

// revalidate imports one settled result file and reruns the full pipeline.
func revalidate(a *app.App, path string, color bool) error {
	progress := console.NewProgress(os.Stdout, color, quietFlag)
	stats, err := a.ImportResults([]string{path}, progress)
	if err != nil {
		return err
	}
	if !containsPath(a.Info.ResultFiles, path) {
		a.Info.ResultFiles = append(a.Info.ResultFiles, path)
	}

	pipeline := a.NewPipeline(progress)
	if err := pipeline.Run(); err != nil {
		return err
	}
	a.Info.RunFinished = true
	if err := a.SaveState(); err != nil {
		return err
	}

	if !quietFlag {
		n := 0
		if r := pipeline.ProteinResults(); r != nil {
			n = r.NValidated
		}
		fmt.Printf("▸ %s: %d rows in, %d protein groups validated\n", filepath.Base(path), stats.Rows, n)
	}
	return nil
}
