package targetdecoy

import "github.com/corey/pepvalid/internal/ports"

// ComputeResults thresholds the map at the given FDR (percent): the score
// limit is the worst score at which the cumulative decoy/target ratio still
// stays at or below the limit, scanning from best to worst. When no score
// qualifies the results carry the no-validated flag and nothing passes.
//
// The results stick to the map until the next call, so validation decisions
// and reports read one consistent snapshot.
func (m *Map) ComputeResults(fdrPercent float64) *ports.FDRResults {
	res := &ports.FDRResults{FDRLimit: fdrPercent, NoValidated: true}
	limit := fdrPercent / 100

	cumT, cumD := 0, 0
	for _, s := range m.sortedScores() {
		b := m.bins[s]
		cumT += b.targets
		cumD += b.decoys
		if cumT == 0 {
			continue
		}
		if float64(cumD)/float64(cumT) <= limit {
			res.NoValidated = false
			res.ScoreLimit = s
			res.NValidated = cumT
			res.NFalsePositives = float64(cumD)
		}
	}
	if !res.NoValidated {
		res.ConfidenceLimit = 100 * (1 - m.Probability(res.ScoreLimit))
	}
	m.results = res
	return res
}

// Results returns the last computed FDR results, nil before any validation.
func (m *Map) Results() *ports.FDRResults {
	return m.results
}

// NoValidated reports whether the last thresholding validated nothing.
// True before any thresholding.
func (m *Map) NoValidated() bool {
	return m.results == nil || m.results.NoValidated
}

// ScoreLimit returns the validation threshold from the last thresholding.
// Only meaningful when NoValidated is false.
func (m *Map) ScoreLimit() float64 {
	if m.results == nil {
		return 0
	}
	return m.results.ScoreLimit
}
