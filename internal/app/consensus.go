package app

import (
	"fmt"

	"github.com/corey/pepvalid/internal/ports"
)

// candidate is one distinct peptide competing for a spectrum's best
// assumption slot.
type candidate struct {
	assumption *ports.PeptideAssumption
	p          float64 // combined probability, lower is better
	proteinMax int     // best known occurrence count of its parent proteins
	engines    int     // number of engines proposing this peptide
}

// better implements the flat consensus comparator: lowest combined
// probability, then highest known protein occurrence count, then most
// supporting engines. A tie on all three keeps the incumbent.
func better(a, b *candidate) bool {
	if a.p != b.p {
		return a.p < b.p
	}
	if a.proteinMax != b.proteinMax {
		return a.proteinMax > b.proteinMax
	}
	return a.engines > b.engines
}

// fillPsmMap elects the consensus best assumption of every spectrum and
// feeds the elected score into the PSM map under its charge+fraction key.
//
// The protein occurrence table grows as elections proceed: each elected
// spectrum contributes its per-advocate first hits, so later elections see
// the accessions accumulated so far. The table dies with the stage.
func (p *Pipeline) fillPsmMap() error {
	p.progress.SetTitle("Selecting consensus matches")
	keys, err := p.store.SpectrumKeys()
	if err != nil {
		return fmt.Errorf("list spectrum matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	p.occurrences = make(map[string]int)
	defer func() { p.occurrences = nil }()

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		match, err := p.store.SpectrumMatch(key)
		if err != nil {
			return fmt.Errorf("spectrum match %s: %w", key, err)
		}

		elected := p.electBest(match)
		if elected == nil {
			p.progress.Step()
			continue
		}

		match.Best = elected.assumption
		param := ports.NewMatchParameter()
		param.Score = elected.p
		param.SpecificKey = p.psmMap.Key(match)
		p.psmMap.AddPoint(param.SpecificKey, elected.p, p.anyDecoy(elected.assumption.Accessions))
		if err := p.store.SetParameter(ports.SpectrumKind, key, param); err != nil {
			return fmt.Errorf("set spectrum parameter %s: %w", key, err)
		}
		p.store.MarkChanged(ports.SpectrumKind, key)

		for _, adv := range match.Advocates() {
			if hit := match.FirstHit(adv); hit != nil {
				for _, acc := range hit.Accessions {
					p.occurrences[acc]++
				}
			}
		}
		p.progress.Step()
	}
	return nil
}

// electBest picks the consensus assumption for one spectrum. Candidates are
// each advocate's best-raw-score assumptions, deduplicated across engines by
// peptide key in first-seen order; nil when the spectrum has none.
func (p *Pipeline) electBest(match *ports.SpectrumMatch) *candidate {
	multi := p.inputMap.MultipleEngines()

	var order []string
	byKey := make(map[string]*ports.PeptideAssumption)
	for _, adv := range match.Advocates() {
		list := match.Assumptions[adv]
		if len(list) == 0 {
			continue
		}
		best := list[0].Score
		for _, a := range list {
			if a.Score != best {
				break
			}
			key := a.Key()
			if _, seen := byKey[key]; !seen {
				byKey[key] = a
				order = append(order, key)
			}
		}
	}
	if len(order) == 0 {
		return nil
	}

	var elected *candidate
	for _, key := range order {
		cand := p.scoreCandidate(match, byKey[key], key, multi)
		if elected == nil || better(cand, elected) {
			elected = cand
		}
	}
	return elected
}

// scoreCandidate computes the comparator attributes of one candidate. With
// several engines present, the combined probability multiplies each
// proposing engine's calibrated probability, found by scanning that engine's
// assumptions in ascending score order up to the first peptide key match.
// With a single engine, the raw score stands in uncalibrated.
func (p *Pipeline) scoreCandidate(match *ports.SpectrumMatch, a *ports.PeptideAssumption, key string, multi bool) *candidate {
	cand := &candidate{assumption: a, p: a.Score, engines: 1}
	if multi {
		prob := 1.0
		engines := 0
		for _, adv := range match.Advocates() {
			for _, other := range match.Assumptions[adv] {
				if other.Key() == key {
					prob *= other.Probability
					engines++
					break
				}
			}
		}
		cand.p = prob
		cand.engines = engines
	}

	max := 0
	for _, acc := range a.Accessions {
		if n := p.occurrences[acc]; n > max {
			max = n
		}
	}
	if max < 1 {
		max = 1
	}
	cand.proteinMax = max
	return cand
}
