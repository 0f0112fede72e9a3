package app

import (
	"fmt"

	"github.com/corey/pepvalid/internal/domain/scoring"
	"github.com/corey/pepvalid/internal/ports"
)

// Pipeline runs the statistical validation stages over the identification
// store. Stage order is fixed: engine calibration, consensus election, the
// spectrum to peptide to protein aggregation chain, protein inference
// resolution, FDR validation, and modification site localization.
//
// Cancellation is polled between stages and per unit of work; an early
// return leaves previously flushed state intact and skips persistence.
type Pipeline struct {
	store     ports.IdentificationStore
	sequences ports.SequenceProvider
	spectra   ports.SpectrumProvider
	params    *ports.Parameters
	progress  ports.ProgressHandler

	inputMap   *scoring.InputMap
	psmMap     *scoring.PsmMap
	peptideMap *scoring.PeptideMap
	proteinMap *scoring.ProteinMap

	metrics *ports.Metrics

	// occurrences counts accession sightings for the consensus tie-break.
	// The consensus stage fills it and clears it when done.
	occurrences map[string]int
}

// NewPipeline builds a pipeline over the given collaborators. The spectrum
// provider may be nil (site localization then runs on rank competition
// alone); a nil progress handler falls back to NopProgress.
func NewPipeline(store ports.IdentificationStore, sequences ports.SequenceProvider, spectra ports.SpectrumProvider, params *ports.Parameters, progress ports.ProgressHandler) *Pipeline {
	if params == nil {
		params = ports.DefaultParameters()
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}
	return &Pipeline{
		store:      store,
		sequences:  sequences,
		spectra:    spectra,
		params:     params,
		progress:   progress,
		inputMap:   scoring.NewInputMap(),
		psmMap:     scoring.NewPsmMap(),
		peptideMap: scoring.NewPeptideMap(),
		proteinMap: scoring.NewProteinMap(),
		metrics:    &ports.Metrics{},
	}
}

// Metrics returns the dataset metrics collected by the last run.
func (p *Pipeline) Metrics() *ports.Metrics {
	return p.metrics
}

// PsmResults returns the per-subgroup FDR results of the PSM map.
func (p *Pipeline) PsmResults() map[string]*ports.FDRResults {
	return p.psmMap.Results()
}

// PeptideResults returns the per-subgroup FDR results of the peptide map.
func (p *Pipeline) PeptideResults() map[string]*ports.FDRResults {
	return p.peptideMap.Results()
}

// ProteinResults returns the FDR results of the protein map, nil before
// validation.
func (p *Pipeline) ProteinResults() *ports.FDRResults {
	return p.proteinMap.Results()
}

// Run executes a full validation pass. A cooperative cancellation returns
// nil without persisting; check the progress handler to tell the two apart.
func (p *Pipeline) Run() error {
	if err := p.estimateInputProbabilities(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}

	if err := p.attachAssumptionProbabilities(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}

	if err := p.fillPsmMap(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	p.psmMap.Cure()
	p.psmMap.EstimateProbabilities()
	if err := p.store.Flush(); err != nil {
		return fmt.Errorf("flush consensus matches: %w", err)
	}

	// Everything above the spectrum level runs through the reprocessing
	// hook, so a full pass and a partial rebuild share one code path.
	if err := p.SpectrumMapChanged(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}

	if err := p.FDRValidation(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}

	if err := p.scorePeptidePtms(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	if err := p.scoreProteinPtms(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}

	p.reportSuspicious()
	if err := p.persist(); err != nil {
		return err
	}
	p.progress.Done()
	return nil
}

// SpectrumMapChanged rebuilds every level above the spectra: fresh peptide
// and protein maps, rebuilt matches, re-estimated probabilities, resolved
// protein groups. Called by Run and by partial updates after new spectrum
// evidence arrives.
func (p *Pipeline) SpectrumMapChanged() error {
	p.peptideMap = scoring.NewPeptideMap()
	p.proteinMap = scoring.NewProteinMap()

	if err := p.attachSpectrumProbabilities(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	if err := p.buildMatches(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	if err := p.fillPeptideMaps(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	p.peptideMap.Cure()
	p.peptideMap.EstimateProbabilities()

	return p.peptideMapChangedTail()
}

// PeptideMapChanged rebuilds the protein level after peptide-level edits.
func (p *Pipeline) PeptideMapChanged() error {
	p.proteinMap = scoring.NewProteinMap()
	return p.peptideMapChangedTail()
}

// peptideMapChangedTail is the protein-level chain shared by the spectrum
// and peptide hooks: attach peptide PEPs, rebuild the protein map, resolve
// inference conflicts, estimate, attach.
func (p *Pipeline) peptideMapChangedTail() error {
	if err := p.attachPeptideProbabilities(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	if err := p.fillProteinMap(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	if err := p.resolveProteinGroups(); err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}
	p.proteinMap.EstimateProbabilities()
	if err := p.ProteinMapChanged(); err != nil {
		return err
	}
	if err := p.store.Flush(); err != nil {
		return fmt.Errorf("flush protein matches: %w", err)
	}
	return nil
}

// ProteinMapChanged re-attaches protein posterior probabilities.
func (p *Pipeline) ProteinMapChanged() error {
	return p.attachProteinProbabilities()
}

// estimateInputProbabilities fills the per-engine calibration map from the
// stored first hits and estimates each engine's probability curve.
func (p *Pipeline) estimateInputProbabilities() error {
	p.progress.SetTitle("Calibrating search engine scores")
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
		for _, adv := range match.Advocates() {
			hit := match.FirstHit(adv)
			if hit == nil {
				continue
			}
			p.inputMap.AddPoint(adv, hit.Score, p.anyDecoy(hit.Accessions))
		}
		p.progress.Step()
	}

	p.inputMap.EstimateProbabilities()
	return nil
}

// attachAssumptionProbabilities walks every advocate's assumptions in
// ascending raw score and attaches the calibrated probability, forced
// non-decreasing with a running maximum.
func (p *Pipeline) attachAssumptionProbabilities() error {
	p.progress.SetTitle("Attaching assumption probabilities")
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
		for _, adv := range match.Advocates() {
			running := 0.0
			for _, a := range match.Assumptions[adv] {
				pep := p.inputMap.Probability(adv, a.Score)
				if pep > running {
					running = pep
				}
				a.Probability = running
			}
		}
		p.store.MarkChanged(ports.SpectrumKind, key)
		p.progress.Step()
	}
	return nil
}

// reportSuspicious appends the anomalous score distribution summary to the
// processing report. The detailed flag switches from counts to per-subgroup
// lines.
func (p *Pipeline) reportSuspicious() {
	for _, adv := range p.inputMap.SuspiciousInput() {
		p.progress.Report(fmt.Sprintf("Unreliable score distribution for %s.", adv))
	}

	psm := p.psmMap.SuspiciousGroups()
	peptide := p.peptideMap.SuspiciousGroups()
	if p.params.DetailedReport {
		for _, g := range psm {
			p.progress.Report(fmt.Sprintf("Unreliable PSM subgroup %s.", g))
		}
		for _, g := range peptide {
			p.progress.Report(fmt.Sprintf("Unreliable peptide subgroup %s.", g))
		}
	} else {
		if len(psm) > 0 {
			p.progress.Report(fmt.Sprintf("%d PSM subgroups with unreliable score distributions.", len(psm)))
		}
		if len(peptide) > 0 {
			p.progress.Report(fmt.Sprintf("%d peptide subgroups with unreliable score distributions.", len(peptide)))
		}
	}

	if p.proteinMap.SuspiciousInput() {
		p.progress.Report("Unreliable protein score distribution.")
	}
}

// persist writes the score-map state and the collected metrics, then
// flushes every dirty match.
func (p *Pipeline) persist() error {
	psmState, psmGrouping := p.psmMap.State()
	pepState, pepGrouping := p.peptideMap.State()
	state := &ports.ScoreMapsState{
		Input:           p.inputMap.State(),
		Psm:             psmState,
		PsmGrouping:     psmGrouping,
		Peptide:         pepState,
		PeptideGrouping: pepGrouping,
		Protein:         p.proteinMap.State(),
	}
	if err := p.store.SaveScoreMaps(state); err != nil {
		return fmt.Errorf("save score maps: %w", err)
	}
	if err := p.store.SaveMetrics(p.metrics); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	if err := p.store.Flush(); err != nil {
		return fmt.Errorf("flush matches: %w", err)
	}
	return nil
}

// anyDecoy reports whether any accession carries a decoy flag. A match is
// treated as decoy as soon as one of its proteins is.
func (p *Pipeline) anyDecoy(accessions []string) bool {
	for _, acc := range accessions {
		if p.params.IsDecoy(acc) {
			return true
		}
	}
	return false
}
