package ports

// MatchKind selects which match family a keyed operation addresses.
type MatchKind int

const (
	SpectrumKind MatchKind = iota
	PeptideKind
	ProteinKind
)

func (k MatchKind) String() string {
	switch k {
	case SpectrumKind:
		return "spectrum"
	case PeptideKind:
		return "peptide"
	case ProteinKind:
		return "protein"
	}
	return "unknown"
}

// MatchParameter is the statistical annotation attached to a match, stored
// under the match's own key. Raw scores are probability products (lower is
// better); PEPs come out of the target/decoy maps.
type MatchParameter struct {
	// Score is the raw probabilistic score before calibration.
	Score float64 `json:"score"`

	// Probability is the posterior error probability estimated for Score.
	Probability float64 `json:"probability"`

	// Validated is set by FDR validation. Reassigned on every run.
	Validated bool `json:"validated"`

	// SpecificKey is the subgroup key the match was scored under. Resolution
	// at validation time goes through the map's CorrectedKey, so pooling
	// during cure does not invalidate stored keys.
	SpecificKey string `json:"specific_key,omitempty"`

	// GroupClass is the protein inference class. Meaningful on protein
	// matches and on peptides under resolved groups.
	GroupClass GroupClass `json:"group_class"`

	// FractionScore accumulates the raw score per spectrum file.
	FractionScore map[string]float64 `json:"fraction_score,omitempty"`

	// FractionPEP holds the per-fraction posterior error probabilities.
	FractionPEP map[string]float64 `json:"fraction_pep,omitempty"`
}

// NewMatchParameter returns an annotation with neutral scores.
func NewMatchParameter() *MatchParameter {
	return &MatchParameter{Score: 1, Probability: 1}
}

// Confidence converts the PEP into a percent confidence, floored at zero.
func (p *MatchParameter) Confidence() float64 {
	c := 100 * (1 - p.Probability)
	if c < 0 {
		return 0
	}
	return c
}

// MultiplyFractionScore folds one observation into the fraction's running
// score product.
func (p *MatchParameter) MultiplyFractionScore(fraction string, probability float64) {
	if p.FractionScore == nil {
		p.FractionScore = make(map[string]float64)
	}
	if _, ok := p.FractionScore[fraction]; !ok {
		p.FractionScore[fraction] = 1
	}
	p.FractionScore[fraction] *= probability
}

// SetFractionPEP records the estimated PEP for one fraction.
func (p *MatchParameter) SetFractionPEP(fraction string, pep float64) {
	if p.FractionPEP == nil {
		p.FractionPEP = make(map[string]float64)
	}
	p.FractionPEP[fraction] = pep
}

// Parameters are the project-level processing settings, persisted with the
// project and overridable per run from the CLI.
type Parameters struct {
	// FDR is the false discovery rate threshold in percent (1 = 1%).
	FDR float64 `json:"fdr"`

	// DecoyFlags mark decoy accessions: suffix match after "_" or prefix
	// match before "_".
	DecoyFlags []string `json:"decoy_flags"`

	// FragmentMzTol is the fragment matching tolerance in m/z for site
	// localization.
	FragmentMzTol float64 `json:"fragment_mz_tol"`

	// TrainingConfidence is the percent confidence bound for the training
	// set export: good spectra score at or above it, bad spectra at or
	// below 100 minus it.
	TrainingConfidence float64 `json:"training_confidence"`

	// DetailedReport adds per-subgroup suspicious-input lines to the
	// processing summary.
	DetailedReport bool `json:"detailed_report"`
}

// DefaultParameters returns the settings a fresh project starts with.
func DefaultParameters() *Parameters {
	return &Parameters{
		FDR:                1,
		DecoyFlags:         []string{"REVERSED", "REV", "DECOY", "RND"},
		FragmentMzTol:      0.02,
		TrainingConfidence: 95,
	}
}

// IsDecoy reports whether an accession carries one of the decoy flags,
// either as a "_FLAG" suffix or a "FLAG_" prefix.
func (p *Parameters) IsDecoy(accession string) bool {
	for _, flag := range p.DecoyFlags {
		if len(accession) > len(flag)+1 {
			if accession[len(accession)-len(flag)-1:] == "_"+flag {
				return true
			}
			if accession[:len(flag)+1] == flag+"_" {
				return true
			}
		}
	}
	return false
}
