package app

import (
	"fmt"

	"github.com/corey/pepvalid/internal/ports"
)

// groupSpectrumCount counts the distinct spectra under a group across all
// of its member peptides.
func groupSpectrumCount(store ports.IdentificationStore, group *ports.ProteinMatch) (int, error) {
	seen := make(map[string]bool)
	for _, pepKey := range group.PeptideKeys {
		peptide, err := store.PeptideMatch(pepKey)
		if err != nil {
			return 0, fmt.Errorf("peptide match %s: %w", pepKey, err)
		}
		if peptide == nil {
			continue
		}
		for _, specKey := range peptide.SpectrumKeys {
			seen[specKey] = true
		}
	}
	return len(seen), nil
}

// validatedSpectrumCount counts the distinct validated spectra under a
// group, the spectrum counting quantity tracked in the metrics.
func validatedSpectrumCount(store ports.IdentificationStore, group *ports.ProteinMatch) (int, error) {
	seen := make(map[string]bool)
	n := 0
	for _, pepKey := range group.PeptideKeys {
		peptide, err := store.PeptideMatch(pepKey)
		if err != nil {
			return 0, fmt.Errorf("peptide match %s: %w", pepKey, err)
		}
		if peptide == nil {
			continue
		}
		for _, specKey := range peptide.SpectrumKeys {
			if seen[specKey] {
				continue
			}
			seen[specKey] = true
			param, err := store.Parameter(ports.SpectrumKind, specKey)
			if err != nil {
				return 0, fmt.Errorf("spectrum parameter %s: %w", specKey, err)
			}
			if param != nil && param.Validated {
				n++
			}
		}
	}
	return n, nil
}
