// Package scoring holds the specific score maps of the validation pipeline:
// per-engine input calibration, charge/fraction PSM subgroups, modification
// peptide subgroups, and the global protein map. Each subgroup owns one
// target/decoy histogram; curing pools subgroups that are too sparse to
// estimate on their own.
//
// Thread safety: NOT safe for concurrent use.
package scoring

import (
	"sort"

	"github.com/corey/pepvalid/internal/domain/targetdecoy"
	"github.com/corey/pepvalid/internal/ports"
)

// minGroupSize is the smallest subgroup population allowed to stand alone.
// Sparser subgroups pool into a sibling during Cure.
const minGroupSize = 100

// InputMap calibrates each search engine's raw score distribution.
type InputMap struct {
	engines map[ports.Advocate]*targetdecoy.Map
}

// NewInputMap returns an empty calibration map.
func NewInputMap() *InputMap {
	return &InputMap{engines: make(map[ports.Advocate]*targetdecoy.Map)}
}

// NewInputMapFromState rebuilds the calibration map from serialized state.
func NewInputMapFromState(st map[ports.Advocate]*ports.TargetDecoyState) *InputMap {
	m := NewInputMap()
	for adv, s := range st {
		m.engines[adv] = targetdecoy.NewFromState(s)
	}
	return m
}

// AddPoint records one first-hit observation for an engine.
func (m *InputMap) AddPoint(adv ports.Advocate, score float64, decoy bool) {
	e, ok := m.engines[adv]
	if !ok {
		e = targetdecoy.New()
		m.engines[adv] = e
	}
	e.AddPoint(score, decoy)
}

// Advocates lists the engines with recorded observations, ascending.
func (m *InputMap) Advocates() []ports.Advocate {
	advs := make([]ports.Advocate, 0, len(m.engines))
	for adv := range m.engines {
		advs = append(advs, adv)
	}
	sort.Slice(advs, func(i, j int) bool { return advs[i] < advs[j] })
	return advs
}

// MultipleEngines reports whether more than one engine contributed. The
// consensus stage multiplies calibrated probabilities only in that case.
func (m *InputMap) MultipleEngines() bool {
	return len(m.engines) > 1
}

// EstimateProbabilities cures and estimates every engine's histogram.
func (m *InputMap) EstimateProbabilities() {
	for _, adv := range m.Advocates() {
		e := m.engines[adv]
		e.Cure()
		e.EstimateProbabilities()
	}
}

// Probability returns the calibrated PEP of a raw engine score, 1 when the
// engine is unknown.
func (m *InputMap) Probability(adv ports.Advocate, score float64) float64 {
	e, ok := m.engines[adv]
	if !ok {
		return 1
	}
	return e.Probability(score)
}

// SuspiciousInput lists the engines whose score distribution looks
// unreliable, ascending.
func (m *InputMap) SuspiciousInput() []ports.Advocate {
	var suspicious []ports.Advocate
	for _, adv := range m.Advocates() {
		if m.engines[adv].SuspiciousInput() {
			suspicious = append(suspicious, adv)
		}
	}
	return suspicious
}

// State serializes every engine histogram.
func (m *InputMap) State() map[ports.Advocate]*ports.TargetDecoyState {
	st := make(map[ports.Advocate]*ports.TargetDecoyState, len(m.engines))
	for adv, e := range m.engines {
		st[adv] = e.State()
	}
	return st
}
