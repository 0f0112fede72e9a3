package app

import (
	"fmt"

	"github.com/corey/pepvalid/internal/ports"
)

// FDRValidation fixes the score thresholds at the configured false
// discovery rate on all three levels and flags every match against them.
// Matches failing the threshold are flagged too, so revalidating at a new
// rate never leaves stale flags behind.
func (p *Pipeline) FDRValidation() error {
	p.psmMap.ComputeResults(p.params.FDR)
	p.peptideMap.ComputeResults(p.params.FDR)
	p.proteinMap.ComputeResults(p.params.FDR)

	p.progress.SetTitle("Validating matches")
	spectrumKeys, err := p.store.SpectrumKeys()
	if err != nil {
		return fmt.Errorf("list spectrum matches: %w", err)
	}
	peptideKeys, err := p.store.PeptideKeys()
	if err != nil {
		return fmt.Errorf("list peptide matches: %w", err)
	}
	proteinKeys, err := p.store.ProteinKeys()
	if err != nil {
		return fmt.Errorf("list protein matches: %w", err)
	}
	p.progress.SetMax(len(spectrumKeys) + len(peptideKeys) + len(proteinKeys))

	for _, key := range spectrumKeys {
		if p.progress.Canceled() {
			return nil
		}
		p.progress.Step()
		param, err := p.store.Parameter(ports.SpectrumKind, key)
		if err != nil {
			return fmt.Errorf("spectrum parameter %s: %w", key, err)
		}
		if param == nil {
			continue
		}
		limit, ok := p.psmMap.ScoreLimit(param.SpecificKey)
		param.Validated = ok && param.Score <= limit
		if err := p.store.SetParameter(ports.SpectrumKind, key, param); err != nil {
			return fmt.Errorf("set spectrum parameter %s: %w", key, err)
		}
	}

	for _, key := range peptideKeys {
		if p.progress.Canceled() {
			return nil
		}
		p.progress.Step()
		param, err := p.store.Parameter(ports.PeptideKind, key)
		if err != nil {
			return fmt.Errorf("peptide parameter %s: %w", key, err)
		}
		if param == nil {
			continue
		}
		limit, ok := p.peptideMap.ScoreLimit(param.SpecificKey)
		param.Validated = ok && param.Score <= limit
		if err := p.store.SetParameter(ports.PeptideKind, key, param); err != nil {
			return fmt.Errorf("set peptide parameter %s: %w", key, err)
		}
	}

	proteinLimit, proteinOK := p.proteinMap.ScoreLimit()
	for _, key := range proteinKeys {
		if p.progress.Canceled() {
			return nil
		}
		p.progress.Step()
		param, err := p.store.Parameter(ports.ProteinKind, key)
		if err != nil {
			return fmt.Errorf("protein parameter %s: %w", key, err)
		}
		if param == nil {
			continue
		}
		param.Validated = proteinOK && param.Score <= proteinLimit
		if err := p.store.SetParameter(ports.ProteinKind, key, param); err != nil {
			return fmt.Errorf("set protein parameter %s: %w", key, err)
		}
	}
	return nil
}
