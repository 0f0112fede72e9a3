package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corey/pepvalid/internal/adapters/mgf"
	"github.com/corey/pepvalid/internal/ports"
)

// Training export file names.
const (
	GoodTrainingFile = "good_training.mgf"
	BadTrainingFile  = "bad_training.mgf"
)

// TrainingStats sums up one training export.
type TrainingStats struct {
	Good     int
	Bad      int
	Skipped  int
	GoodPath string
	BadPath  string
}

// ExportTraining partitions the loaded spectra into de novo training sets.
// Confident identifications (PSM confidence at or above the level) carry
// their sequence as a SEQ tag into the good set, hopeless ones (confidence
// at or below 100 minus the level) go untagged into the bad set. Spectra
// without an identification are skipped. A canceled export writes no files.
func (a *App) ExportTraining(outDir string, confidenceLevel float64, progress ports.ProgressHandler) (*TrainingStats, error) {
	if progress == nil {
		progress = ports.NopProgress{}
	}
	if a.Spectra == nil || a.Spectra.NSpectra() == 0 {
		return nil, fmt.Errorf("no spectra: import with --spectra first")
	}

	stats := &TrainingStats{
		GoodPath: filepath.Join(outDir, GoodTrainingFile),
		BadPath:  filepath.Join(outDir, BadTrainingFile),
	}
	var good, bad strings.Builder

	progress.SetTitle("Exporting training spectra")
	progress.SetMax(a.Spectra.NSpectra())
	for _, file := range a.Spectra.Files() {
		for _, title := range a.Spectra.Titles(file) {
			if progress.Canceled() {
				return stats, nil
			}
			progress.Step()
			key := ports.SpectrumKey(file, title)
			param, err := a.Store.Parameter(ports.SpectrumKind, key)
			if err != nil {
				return stats, fmt.Errorf("spectrum parameter %s: %w", key, err)
			}
			if param == nil {
				stats.Skipped++
				continue
			}
			spectrum, err := a.Spectra.Spectrum(file, title)
			if err != nil || spectrum == nil {
				stats.Skipped++
				continue
			}

			conf := param.Confidence()
			if conf >= confidenceLevel {
				match, err := a.Store.SpectrumMatch(key)
				if err != nil {
					return stats, fmt.Errorf("spectrum match %s: %w", key, err)
				}
				if match == nil || match.Best == nil {
					stats.Skipped++
					continue
				}
				tags := map[string]string{"SEQ": match.Best.Sequence}
				if err := mgf.WriteSpectrum(&good, spectrum, tags); err != nil {
					return stats, err
				}
				stats.Good++
			}
			if conf <= 100-confidenceLevel {
				if err := mgf.WriteSpectrum(&bad, spectrum, nil); err != nil {
					return stats, err
				}
				stats.Bad++
			}
		}
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return stats, fmt.Errorf("create training dir: %w", err)
	}
	if err := os.WriteFile(stats.GoodPath, []byte(good.String()), 0644); err != nil {
		return stats, fmt.Errorf("write %s: %w", GoodTrainingFile, err)
	}
	if err := os.WriteFile(stats.BadPath, []byte(bad.String()), 0644); err != nil {
		return stats, fmt.Errorf("write %s: %w", BadTrainingFile, err)
	}
	return stats, nil
}
