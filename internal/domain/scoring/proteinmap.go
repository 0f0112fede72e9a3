package scoring

import (
	"github.com/corey/pepvalid/internal/domain/targetdecoy"
	"github.com/corey/pepvalid/internal/ports"
)

// ProteinMap scores protein groups against one global target/decoy
// histogram. Unlike PSMs and peptides, protein groups form a single
// population, but the resolver can still retract points when it merges
// groups away.
type ProteinMap struct {
	td *targetdecoy.Map
}

// NewProteinMap returns an empty protein map.
func NewProteinMap() *ProteinMap {
	return &ProteinMap{td: targetdecoy.New()}
}

// NewProteinMapFromState rebuilds the map from serialized state.
func NewProteinMapFromState(st *ports.TargetDecoyState) *ProteinMap {
	return &ProteinMap{td: targetdecoy.NewFromState(st)}
}

// AddPoint records one protein group observation.
func (m *ProteinMap) AddPoint(score float64, decoy bool) {
	m.td.AddPoint(score, decoy)
}

// RemovePoint retracts a group removed by the resolver.
func (m *ProteinMap) RemovePoint(score float64, decoy bool) {
	m.td.RemovePoint(score, decoy)
}

// EstimateProbabilities cures and estimates the histogram.
func (m *ProteinMap) EstimateProbabilities() {
	m.td.Cure()
	m.td.EstimateProbabilities()
}

// Probability returns the PEP of a protein group score.
func (m *ProteinMap) Probability(score float64) float64 {
	return m.td.Probability(score)
}

// ComputeResults thresholds the map at the given FDR (percent).
func (m *ProteinMap) ComputeResults(fdrPercent float64) *ports.FDRResults {
	return m.td.ComputeResults(fdrPercent)
}

// Results returns the last FDR results, nil before validation.
func (m *ProteinMap) Results() *ports.FDRResults {
	return m.td.Results()
}

// ScoreLimit returns the validation threshold. ok is false when nothing
// validated.
func (m *ProteinMap) ScoreLimit() (limit float64, ok bool) {
	if m.td.NoValidated() {
		return 0, false
	}
	return m.td.ScoreLimit(), true
}

// SuspiciousInput reports whether the protein population looks unreliable.
func (m *ProteinMap) SuspiciousInput() bool {
	return m.td.SuspiciousInput()
}

// State serializes the histogram.
func (m *ProteinMap) State() *ports.TargetDecoyState {
	return m.td.State()
}
