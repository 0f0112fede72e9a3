package app

import (
	"fmt"

	"github.com/corey/pepvalid/internal/ports"
)

// attachSpectrumProbabilities looks up every elected spectrum's posterior
// error probability from the PSM map.
func (p *Pipeline) attachSpectrumProbabilities() error {
	p.progress.SetTitle("Attaching spectrum probabilities")
	keys, err := p.store.SpectrumKeys()
	if err != nil {
		return fmt.Errorf("list spectrum matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		param, err := p.store.Parameter(ports.SpectrumKind, key)
		if err != nil {
			return fmt.Errorf("spectrum parameter %s: %w", key, err)
		}
		if param == nil {
			p.progress.Step()
			continue
		}
		param.Probability = p.psmMap.Probability(param.SpecificKey, param.Score)
		if err := p.store.SetParameter(ports.SpectrumKind, key, param); err != nil {
			return fmt.Errorf("set spectrum parameter %s: %w", key, err)
		}
		p.progress.Step()
	}
	return nil
}

// buildMatches creates or extends the peptide and protein matches supported
// by the elected spectra. Memberships are additive and duplicate free, so
// rebuilding over existing matches is harmless.
func (p *Pipeline) buildMatches() error {
	p.progress.SetTitle("Building peptide and protein matches")
	keys, err := p.store.SpectrumKeys()
	if err != nil {
		return fmt.Errorf("list spectrum matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		match, err := p.store.SpectrumMatch(key)
		if err != nil {
			return fmt.Errorf("spectrum match %s: %w", key, err)
		}
		if match.Best == nil {
			p.progress.Step()
			continue
		}
		best := match.Best

		pepKey := best.Key()
		peptide, err := p.store.PeptideMatch(pepKey)
		if err != nil {
			return fmt.Errorf("peptide match %s: %w", pepKey, err)
		}
		if peptide == nil {
			peptide = &ports.PeptideMatch{Key: pepKey, Sequence: best.Sequence, Mods: best.Mods}
			if err := p.store.AddPeptideMatch(peptide); err != nil {
				return fmt.Errorf("add peptide match %s: %w", pepKey, err)
			}
		}
		peptide.AddSpectrum(key)
		for _, acc := range best.Accessions {
			peptide.AddAccession(acc)
		}
		p.store.MarkChanged(ports.PeptideKind, pepKey)

		if len(best.Accessions) > 0 {
			groupKey := ports.ProteinGroupKey(best.Accessions)
			group, err := p.store.ProteinMatch(groupKey)
			if err != nil {
				return fmt.Errorf("protein match %s: %w", groupKey, err)
			}
			if group == nil {
				group = ports.NewProteinMatch(best.Accessions)
				if err := p.store.AddProteinMatch(group); err != nil {
					return fmt.Errorf("add protein match %s: %w", groupKey, err)
				}
			}
			group.AddPeptide(pepKey)
			p.store.MarkChanged(ports.ProteinKind, groupKey)
		}
		p.progress.Step()
	}
	return nil
}

// fillPeptideMaps scores every peptide as the product of its supporting
// spectrum PEPs, tracks the per-fraction products, and feeds the peptide
// map under the modification family key.
func (p *Pipeline) fillPeptideMaps() error {
	p.progress.SetTitle("Scoring peptides")
	keys, err := p.store.PeptideKeys()
	if err != nil {
		return fmt.Errorf("list peptide matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		peptide, err := p.store.PeptideMatch(key)
		if err != nil {
			return fmt.Errorf("peptide match %s: %w", key, err)
		}

		param := ports.NewMatchParameter()
		score := 1.0
		for _, specKey := range peptide.SpectrumKeys {
			specParam, err := p.store.Parameter(ports.SpectrumKind, specKey)
			if err != nil {
				return fmt.Errorf("spectrum parameter %s: %w", specKey, err)
			}
			if specParam == nil {
				continue
			}
			score *= specParam.Probability
			param.MultiplyFractionScore(ports.SpectrumFile(specKey), specParam.Probability)
		}
		param.Score = score
		param.SpecificKey = p.peptideMap.Key(peptide)
		p.metrics.AddFoundModification(param.SpecificKey)
		p.peptideMap.AddPoint(param.SpecificKey, score, p.anyDecoy(peptide.Accessions))
		if err := p.store.SetParameter(ports.PeptideKind, key, param); err != nil {
			return fmt.Errorf("set peptide parameter %s: %w", key, err)
		}
		p.progress.Step()
	}
	return nil
}

// attachPeptideProbabilities looks up every peptide's global and
// per-fraction PEPs from the peptide map.
func (p *Pipeline) attachPeptideProbabilities() error {
	p.progress.SetTitle("Attaching peptide probabilities")
	keys, err := p.store.PeptideKeys()
	if err != nil {
		return fmt.Errorf("list peptide matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		param, err := p.store.Parameter(ports.PeptideKind, key)
		if err != nil {
			return fmt.Errorf("peptide parameter %s: %w", key, err)
		}
		if param == nil {
			p.progress.Step()
			continue
		}
		param.Probability = p.peptideMap.Probability(param.SpecificKey, param.Score)
		for fraction, score := range param.FractionScore {
			param.SetFractionPEP(fraction, p.peptideMap.Probability(param.SpecificKey, score))
		}
		if err := p.store.SetParameter(ports.PeptideKind, key, param); err != nil {
			return fmt.Errorf("set peptide parameter %s: %w", key, err)
		}
		p.progress.Step()
	}
	return nil
}

// fillProteinMap scores every protein group as the product of its member
// peptide PEPs, folds the per-fraction peptide PEPs into fraction scores,
// and feeds the global protein map.
func (p *Pipeline) fillProteinMap() error {
	p.progress.SetTitle("Scoring proteins")
	keys, err := p.store.ProteinKeys()
	if err != nil {
		return fmt.Errorf("list protein matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		group, err := p.store.ProteinMatch(key)
		if err != nil {
			return fmt.Errorf("protein match %s: %w", key, err)
		}
		if group == nil {
			p.progress.Step()
			continue
		}

		param := ports.NewMatchParameter()
		score := 1.0
		for _, pepKey := range group.PeptideKeys {
			pepParam, err := p.store.Parameter(ports.PeptideKind, pepKey)
			if err != nil {
				return fmt.Errorf("peptide parameter %s: %w", pepKey, err)
			}
			if pepParam == nil {
				continue
			}
			score *= pepParam.Probability
			for fraction, pep := range pepParam.FractionPEP {
				param.MultiplyFractionScore(fraction, pep)
			}
		}
		param.Score = score
		p.proteinMap.AddPoint(score, p.anyDecoy(group.Accessions))
		if err := p.store.SetParameter(ports.ProteinKind, key, param); err != nil {
			return fmt.Errorf("set protein parameter %s: %w", key, err)
		}
		p.progress.Step()
	}
	return nil
}

// attachProteinProbabilities looks up every group's global and per-fraction
// PEPs from the protein map.
func (p *Pipeline) attachProteinProbabilities() error {
	p.progress.SetTitle("Attaching protein probabilities")
	keys, err := p.store.ProteinKeys()
	if err != nil {
		return fmt.Errorf("list protein matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		param, err := p.store.Parameter(ports.ProteinKind, key)
		if err != nil {
			return fmt.Errorf("protein parameter %s: %w", key, err)
		}
		if param == nil {
			p.progress.Step()
			continue
		}
		param.Probability = p.proteinMap.Probability(param.Score)
		for fraction, score := range param.FractionScore {
			param.SetFractionPEP(fraction, p.proteinMap.Probability(score))
		}
		if err := p.store.SetParameter(ports.ProteinKind, key, param); err != nil {
			return fmt.Errorf("set protein parameter %s: %w", key, err)
		}
		p.progress.Step()
	}
	return nil
}
