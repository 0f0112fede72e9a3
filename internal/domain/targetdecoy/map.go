// Package targetdecoy estimates posterior error probabilities from
// target/decoy score distributions.
//
// A Map is a histogram of observed scores, split into target and decoy
// counts per score bin. Lower scores are better everywhere in the pipeline
// (engine e-values and probability products alike). Estimation walks the
// histogram from best to worst score and converts local decoy ratios into a
// monotone posterior error probability curve.
//
// Cure pools sparse bins into a side view used by estimation; the raw
// histogram stays intact so points can still be removed at their original
// scores afterwards.
//
// Thread safety: NOT safe for concurrent use.
package targetdecoy

import (
	"math"
	"sort"

	"github.com/corey/pepvalid/internal/ports"
)

const (
	// minBinSupport is the smallest combined target+decoy count a pooled
	// bin may keep after Cure. Sparser bins merge into a neighbor.
	minBinSupport = 10

	// minObservations is the smallest population considered stable enough
	// for estimation. Below it the map reports suspicious input.
	minObservations = 100
)

// bin holds the counts of one score.
type bin struct {
	targets int
	decoys  int
}

// Map is a target/decoy score histogram with an estimated probability curve.
type Map struct {
	bins     map[float64]*bin
	nTargets int
	nDecoys  int

	// pooled is the cured view of the histogram, nil until Cure and
	// invalidated by any mutation.
	pooled []ports.ScoreBin

	estimated bool
	curve     []ports.ScoreBin // ascending score, PEP filled

	results *ports.FDRResults
}

// New returns an empty map.
func New() *Map {
	return &Map{bins: make(map[float64]*bin)}
}

// NewFromState rebuilds a map from its serialized form.
func NewFromState(st *ports.TargetDecoyState) *Map {
	m := New()
	if st == nil {
		return m
	}
	for _, sb := range st.Bins {
		if sb.Targets > 0 || sb.Decoys > 0 {
			m.bins[sb.Score] = &bin{targets: sb.Targets, decoys: sb.Decoys}
			m.nTargets += sb.Targets
			m.nDecoys += sb.Decoys
		}
	}
	if st.Estimated {
		m.estimated = true
		m.curve = make([]ports.ScoreBin, len(st.Bins))
		copy(m.curve, st.Bins)
	}
	m.results = st.Results
	return m
}

// AddPoint records one observation.
func (m *Map) AddPoint(score float64, decoy bool) {
	b, ok := m.bins[score]
	if !ok {
		b = &bin{}
		m.bins[score] = b
	}
	if decoy {
		b.decoys++
		m.nDecoys++
	} else {
		b.targets++
		m.nTargets++
	}
	m.pooled = nil
}

// RemovePoint forgets one observation. Removing a score that was never added
// is a no-op; counts never go negative.
func (m *Map) RemovePoint(score float64, decoy bool) {
	b, ok := m.bins[score]
	if !ok {
		return
	}
	if decoy {
		if b.decoys == 0 {
			return
		}
		b.decoys--
		m.nDecoys--
	} else {
		if b.targets == 0 {
			return
		}
		b.targets--
		m.nTargets--
	}
	if b.targets == 0 && b.decoys == 0 {
		delete(m.bins, score)
	}
	m.pooled = nil
}

// Absorb folds every observation of another map into this one.
func (m *Map) Absorb(other *Map) {
	for s, ob := range other.bins {
		b, ok := m.bins[s]
		if !ok {
			b = &bin{}
			m.bins[s] = b
		}
		b.targets += ob.targets
		b.decoys += ob.decoys
	}
	m.nTargets += other.nTargets
	m.nDecoys += other.nDecoys
	m.pooled = nil
}

// Size returns the total number of recorded observations.
func (m *Map) Size() int {
	return m.nTargets + m.nDecoys
}

// Targets returns the target observation count.
func (m *Map) Targets() int {
	return m.nTargets
}

// Decoys returns the decoy observation count.
func (m *Map) Decoys() int {
	return m.nDecoys
}

// sortedScores returns the raw bin scores ascending (best first).
func (m *Map) sortedScores() []float64 {
	scores := make([]float64, 0, len(m.bins))
	for s := range m.bins {
		scores = append(scores, s)
	}
	sort.Float64s(scores)
	return scores
}

// rawView snapshots the raw histogram as ascending bins.
func (m *Map) rawView() []ports.ScoreBin {
	scores := m.sortedScores()
	view := make([]ports.ScoreBin, 0, len(scores))
	for _, s := range scores {
		b := m.bins[s]
		view = append(view, ports.ScoreBin{Score: s, Targets: b.targets, Decoys: b.decoys})
	}
	return view
}

// Cure builds the pooled view: sparse bins are processed in ascending
// deviation from the neutral score (the midpoint of the observed range) and
// collapse into their nearest neighbor by score distance, the worse neighbor
// on ties, until every surviving bin holds at least minBinSupport
// observations. The raw histogram and total counts are untouched.
func (m *Map) Cure() {
	view := m.rawView()
	if len(view) < 2 {
		m.pooled = view
		return
	}
	neutral := (view[0].Score + view[len(view)-1].Score) / 2

	for len(view) > 1 {
		sparse := -1
		for i, sb := range view {
			if sb.Targets+sb.Decoys >= minBinSupport {
				continue
			}
			if sparse == -1 || math.Abs(sb.Score-neutral) < math.Abs(view[sparse].Score-neutral) {
				sparse = i
			}
		}
		if sparse == -1 {
			break
		}

		neighbor := sparse + 1
		if sparse == len(view)-1 {
			neighbor = sparse - 1
		} else if sparse > 0 {
			left := view[sparse].Score - view[sparse-1].Score
			right := view[sparse+1].Score - view[sparse].Score
			if left < right {
				neighbor = sparse - 1
			}
		}

		view[neighbor].Targets += view[sparse].Targets
		view[neighbor].Decoys += view[sparse].Decoys
		view = append(view[:sparse], view[sparse+1:]...)
	}
	m.pooled = view
}

// EstimateProbabilities converts the histogram into a posterior error
// probability curve, preferring the pooled view when Cure ran. Scanning from
// best to worst score, each bin's local decoy ratio is clamped by a running
// maximum so the curve never decreases as scores worsen.
func (m *Map) EstimateProbabilities() {
	source := m.pooled
	if source == nil {
		source = m.rawView()
	}
	m.curve = make([]ports.ScoreBin, 0, len(source))
	running := 0.0
	for _, sb := range source {
		local := float64(sb.Decoys) / float64(sb.Targets+sb.Decoys)
		if local > running {
			running = local
		}
		sb.PEP = running
		m.curve = append(m.curve, sb)
	}
	m.estimated = true
}

// Probability returns the estimated PEP at a score: the PEP of the last
// curve bin at or below it. Scores better than every bin take the first
// bin's PEP. Before estimation (or on an empty map) the answer is 1.
func (m *Map) Probability(score float64) float64 {
	if !m.estimated || len(m.curve) == 0 {
		return 1
	}
	i := sort.Search(len(m.curve), func(i int) bool {
		return m.curve[i].Score > score
	})
	if i == 0 {
		return m.curve[0].PEP
	}
	return m.curve[i-1].PEP
}

// SuspiciousInput reports whether the distribution looks unreliable: too few
// observations, no decoys at all, or a decoy majority among the best-scoring
// tenth of the data.
func (m *Map) SuspiciousInput() bool {
	total := m.Size()
	if total < minObservations {
		return true
	}
	if m.nDecoys == 0 {
		return true
	}
	window := (total + 9) / 10
	cumT, cumD := 0, 0
	for _, s := range m.sortedScores() {
		b := m.bins[s]
		cumT += b.targets
		cumD += b.decoys
		if cumT+cumD >= window {
			break
		}
	}
	return cumD > cumT
}

// State returns the serialized form of the map: the estimated curve when
// available, the raw histogram otherwise.
func (m *Map) State() *ports.TargetDecoyState {
	st := &ports.TargetDecoyState{Estimated: m.estimated, Results: m.results}
	if m.estimated {
		st.Bins = make([]ports.ScoreBin, len(m.curve))
		copy(st.Bins, m.curve)
		return st
	}
	st.Bins = m.rawView()
	return st
}
