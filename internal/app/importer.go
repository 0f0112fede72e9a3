package app

import (
	"fmt"
	"sort"

	"github.com/corey/pepvalid/internal/adapters/ahocorasick"
	"github.com/corey/pepvalid/internal/adapters/results"
	"github.com/corey/pepvalid/internal/ports"
)

// ImportStats sums up one import run.
type ImportStats struct {
	Files       int
	Rows        int
	NewSpectra  int
	Assumptions int
	// Resolved counts the distinct peptides whose protein mappings came
	// from scanning the sequence database rather than the engine output.
	Resolved int
}

// ImportResults reads search-engine result files into the store. Peptides
// the engines left unmapped are located in the sequence database with one
// automaton pass over the proteome. A duplicate first hit for an engine on
// a spectrum aborts the import, the input is corrupt.
func (a *App) ImportResults(paths []string, progress ports.ProgressHandler) (*ImportStats, error) {
	if progress == nil {
		progress = ports.NopProgress{}
	}
	stats := &ImportStats{}

	progress.SetTitle("Reading search results")
	progress.SetMax(len(paths))
	var rows []*results.Row
	for _, path := range paths {
		if progress.Canceled() {
			return stats, nil
		}
		progress.Step()
		fileRows, err := results.ReadFile(path)
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Rows += len(fileRows)
		rows = append(rows, fileRows...)
	}

	if err := a.resolveAccessions(rows, stats, progress); err != nil {
		return stats, err
	}
	if progress.Canceled() {
		return stats, nil
	}

	progress.SetTitle("Recording assumptions")
	progress.SetMax(len(rows))
	touched := make(map[string]*ports.SpectrumMatch)
	for _, row := range rows {
		if progress.Canceled() {
			return stats, nil
		}
		progress.Step()
		key := row.SpectrumKey()
		match, ok := touched[key]
		if !ok {
			var err error
			match, err = a.Store.SpectrumMatch(key)
			if err != nil {
				return stats, fmt.Errorf("spectrum match %s: %w", key, err)
			}
			if match == nil {
				match = ports.NewSpectrumMatch(key)
				if err := a.Store.AddSpectrumMatch(match); err != nil {
					return stats, fmt.Errorf("add spectrum match %s: %w", key, err)
				}
				stats.NewSpectra++
			}
			touched[key] = match
		}
		if err := match.AddAssumption(row.Assumption()); err != nil {
			return stats, err
		}
		stats.Assumptions++
	}

	keys := make([]string, 0, len(touched))
	for key := range touched {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		touched[key].SortAssumptions()
		a.Store.MarkChanged(ports.SpectrumKind, key)
	}

	if err := a.Store.Flush(); err != nil {
		return stats, fmt.Errorf("flush imported matches: %w", err)
	}
	return stats, nil
}

// resolveAccessions fills in protein mappings for rows the engines left
// without accessions. All unmapped peptides go into one automaton, every
// protein is scanned once.
func (a *App) resolveAccessions(rows []*results.Row, stats *ImportStats, progress ports.ProgressHandler) error {
	var unmapped []string
	for _, row := range rows {
		if len(row.Accessions) == 0 {
			unmapped = append(unmapped, row.Sequence)
		}
	}
	if len(unmapped) == 0 || a.Sequences == nil {
		return nil
	}

	locator := ahocorasick.NewLocator(unmapped)
	accessions := a.Sequences.Accessions()
	progress.SetTitle("Mapping peptides to proteins")
	progress.SetMax(len(accessions))
	for _, acc := range accessions {
		if progress.Canceled() {
			return nil
		}
		progress.Step()
		prot, err := a.Sequences.Protein(acc)
		if err != nil {
			return fmt.Errorf("protein %s: %w", acc, err)
		}
		if prot == nil {
			continue
		}
		locator.Scan(acc, prot.Sequence)
	}

	resolved := make(map[string]bool)
	for _, row := range rows {
		if len(row.Accessions) > 0 {
			continue
		}
		if found := locator.Accessions(row.Sequence); len(found) > 0 {
			row.Accessions = found
			resolved[row.Sequence] = true
		}
	}
	stats.Resolved = len(resolved)
	return nil
}
