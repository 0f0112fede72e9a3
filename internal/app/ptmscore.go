package app

import (
	"fmt"
	"sort"

	"github.com/corey/pepvalid/internal/domain/ptm"
	"github.com/corey/pepvalid/internal/ports"
)

// scoreSpectrumPtms localizes every modification on the match's best
// assumption: delta scores from rank competition, A-scores from fragment
// evidence when the spectrum is at hand, then a confidence tier per mod.
// Does nothing when the best assumption left no room for competition.
func (p *Pipeline) scoreSpectrumPtms(match *ports.SpectrumMatch) error {
	best := match.Best
	if best == nil || len(best.Mods) == 0 || best.Probability >= 1 {
		return nil
	}

	scores := ports.NewPtmScores()
	p.attachDeltaScores(match, scores)
	if err := p.attachAScores(match, scores); err != nil {
		return err
	}
	for _, mod := range scores.Mods() {
		decideSiteConfidence(scores.Scoring(mod))
	}
	match.Scores = scores
	p.store.MarkChanged(ports.SpectrumKind, match.Key)
	return nil
}

// attachDeltaScores records one delta score per modification under the best
// assumption's own site profile. The competitor probability is the best
// engine probability among lower-ranked assumptions of the same sequence
// placing the mod on at least one site outside that profile, 1 when no such
// assumption exists.
func (p *Pipeline) attachDeltaScores(match *ports.SpectrumMatch, scores *ports.PtmScores) {
	best := match.Best
	p1 := best.Probability
	for _, mod := range modificationNames(best.Mods) {
		profile := best.SitesOf(mod)
		inProfile := make(map[int]bool, len(profile))
		for _, site := range profile {
			inProfile[site] = true
		}

		p2 := 1.0
		for _, adv := range match.Advocates() {
			for _, a := range match.Assumptions[adv] {
				if a.Rank <= 1 || a.Sequence != best.Sequence {
					continue
				}
				if !carriesModOutside(a, mod, inProfile) {
					continue
				}
				if a.Probability < p2 {
					p2 = a.Probability
				}
			}
		}
		scores.EnsureScoring(mod).AddDeltaScore(profile, (p2-p1)*100)
	}
}

// attachAScores runs the fragment-evidence score for every modification
// carried exactly once by the best assumption. Without a spectrum provider,
// or when the spectrum is unknown, localization rests on delta scores alone.
func (p *Pipeline) attachAScores(match *ports.SpectrumMatch, scores *ports.PtmScores) error {
	if p.spectra == nil {
		return nil
	}
	best := match.Best
	var spectrum *ports.Spectrum
	for _, mod := range modificationNames(best.Mods) {
		profile := best.SitesOf(mod)
		if len(profile) != 1 {
			continue
		}
		if spectrum == nil {
			var err error
			spectrum, err = p.spectra.Spectrum(ports.SpectrumFile(match.Key), ports.SpectrumTitle(match.Key))
			if err != nil {
				return fmt.Errorf("spectrum %s: %w", match.Key, err)
			}
			if spectrum == nil {
				return nil
			}
		}
		scoring := scores.EnsureScoring(mod)
		for key, score := range ptm.AScore(best.Sequence, mod, profile, spectrum, p.params.FragmentMzTol) {
			scoring.AddAScore(ports.ParseSiteKey(key), score)
		}
	}
	return nil
}

// decideSiteConfidence applies the localization decision table to one
// modification's evidence and commits the retained site profile. With no
// evidence at all the tier stays Random and no profile is committed.
func decideSiteConfidence(s *ports.PtmScoring) {
	bestA := s.BestAKey()
	bestDelta := s.BestDeltaKey()

	retained := bestDelta
	conf := ports.SiteRandom
	if bestA != "" {
		retained = bestA
		switch {
		case s.AScore(bestA) <= 50:
			if bestA == bestDelta {
				conf = ports.SiteDoubtful
				if s.DeltaScore(bestDelta) > 50 {
					conf = ports.SiteConfident
				}
			}
		case bestA == bestDelta:
			conf = ports.SiteVeryConfident
		default:
			conf = ports.SiteConfident
		}
	} else if bestDelta != "" {
		if s.DeltaScore(bestDelta) > 50 {
			conf = ports.SiteConfident
		} else {
			conf = ports.SiteDoubtful
		}
	}
	if retained == "" {
		return
	}
	s.SetSite(retained, conf)
}

// scorePeptidePtms aggregates modification localization from the spectrum
// level onto every modified peptide.
func (p *Pipeline) scorePeptidePtms() error {
	p.progress.SetTitle("Scoring peptide modification sites")
	keys, err := p.store.PeptideKeys()
	if err != nil {
		return fmt.Errorf("list peptide matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		p.progress.Step()
		peptide, err := p.store.PeptideMatch(key)
		if err != nil {
			return fmt.Errorf("peptide match %s: %w", key, err)
		}
		if peptide == nil || len(peptide.Mods) == 0 {
			continue
		}
		if err := p.scorePeptideMatch(peptide); err != nil {
			return err
		}
	}
	return nil
}

// scorePeptideMatch rescores the peptide's best supporting spectra, merges
// their evidence per modification, and rederives the site designations from
// the merged score maps.
func (p *Pipeline) scorePeptideMatch(peptide *ports.PeptideMatch) error {
	bestKeys, err := p.bestSupportingSpectra(peptide)
	if err != nil {
		return err
	}

	merged := ports.NewPtmScores()
	for _, specKey := range bestKeys {
		match, err := p.store.SpectrumMatch(specKey)
		if err != nil {
			return fmt.Errorf("spectrum match %s: %w", specKey, err)
		}
		if match == nil {
			continue
		}
		if err := p.scoreSpectrumPtms(match); err != nil {
			return err
		}
		if match.Scores == nil {
			continue
		}
		for _, mod := range match.Scores.Mods() {
			merged.EnsureScoring(mod).AddAll(match.Scores.Scoring(mod))
		}
	}

	for _, mod := range merged.Mods() {
		scoring := merged.Scoring(mod)
		decideSiteConfidence(scoring)
		for _, site := range scoring.MainSites {
			merged.AddMainSite(mod, site)
		}
		for _, site := range scoring.SecondarySites {
			merged.AddSecondarySite(mod, site)
		}
	}
	peptide.Scores = merged
	p.store.MarkChanged(ports.PeptideKind, peptide.Key)
	return nil
}

// bestSupportingSpectra picks the spectra whose localization evidence
// carries up to the peptide: the validated ones, or when none validated the
// ones at the top PSM confidence.
func (p *Pipeline) bestSupportingSpectra(peptide *ports.PeptideMatch) ([]string, error) {
	var keys []string
	validated := false
	bestConfidence := 0.0
	for _, specKey := range peptide.SpectrumKeys {
		param, err := p.store.Parameter(ports.SpectrumKind, specKey)
		if err != nil {
			return nil, fmt.Errorf("spectrum parameter %s: %w", specKey, err)
		}
		if param == nil {
			continue
		}
		if param.Validated {
			if !validated {
				validated = true
				keys = keys[:0]
			}
			keys = append(keys, specKey)
		} else if !validated {
			conf := param.Confidence()
			if conf > bestConfidence {
				bestConfidence = conf
				keys = keys[:0]
				keys = append(keys, specKey)
			} else if conf == bestConfidence {
				keys = append(keys, specKey)
			}
		}
	}
	return keys, nil
}

// scoreProteinPtms projects peptide-level modification sites into protein
// coordinates on every group. The same walk fixes the validated-protein
// count and the spectrum counting ceiling in the metrics.
func (p *Pipeline) scoreProteinPtms() error {
	p.progress.SetTitle("Scoring protein modification sites")
	keys, err := p.store.ProteinKeys()
	if err != nil {
		return fmt.Errorf("list protein matches: %w", err)
	}
	p.progress.SetMax(len(keys))

	nValidated := 0
	maxCounting := 0.0
	for _, key := range keys {
		if p.progress.Canceled() {
			return nil
		}
		p.progress.Step()
		group, err := p.store.ProteinMatch(key)
		if err != nil {
			return fmt.Errorf("protein match %s: %w", key, err)
		}
		if group == nil {
			continue
		}
		if err := p.scoreProteinMatch(group); err != nil {
			return err
		}

		param, err := p.store.Parameter(ports.ProteinKind, key)
		if err != nil {
			return fmt.Errorf("protein parameter %s: %w", key, err)
		}
		if param != nil && param.Validated {
			nValidated++
		}
		counting, err := validatedSpectrumCount(p.store, group)
		if err != nil {
			return err
		}
		if c := float64(counting); c > maxCounting {
			maxCounting = c
		}
	}
	p.metrics.NValidatedProteins = nValidated
	p.metrics.MaxSpectrumCounting = maxCounting
	return nil
}

// scoreProteinMatch maps the sites of every validated modified member
// peptide into the representative's coordinates, scoring the peptide first
// when it was skipped at the peptide level. A representative missing from
// the sequence database leaves the group without protein-coordinate sites.
func (p *Pipeline) scoreProteinMatch(group *ports.ProteinMatch) error {
	scores := ports.NewPtmScores()
	proteinSequence := ""
	for _, pepKey := range group.PeptideKeys {
		param, err := p.store.Parameter(ports.PeptideKind, pepKey)
		if err != nil {
			return fmt.Errorf("peptide parameter %s: %w", pepKey, err)
		}
		if param == nil || !param.Validated {
			continue
		}
		peptide, err := p.store.PeptideMatch(pepKey)
		if err != nil {
			return fmt.Errorf("peptide match %s: %w", pepKey, err)
		}
		if peptide == nil || len(peptide.Mods) == 0 {
			continue
		}
		if peptide.Scores == nil {
			if err := p.scorePeptideMatch(peptide); err != nil {
				return err
			}
		}
		if peptide.Scores == nil {
			continue
		}

		if proteinSequence == "" {
			seq, ok := p.proteinSequence(group.MainAccession)
			if !ok {
				break
			}
			proteinSequence = seq
		}
		for _, mod := range peptide.Scores.Mods() {
			scoring := peptide.Scores.Scoring(mod)
			for _, pos := range ptm.ProteinSites(proteinSequence, peptide.Sequence, scoring.MainSites) {
				scores.AddMainSite(mod, pos)
			}
			for _, pos := range ptm.ProteinSites(proteinSequence, peptide.Sequence, scoring.SecondarySites) {
				scores.AddSecondarySite(mod, pos)
			}
		}
	}
	group.Scores = scores
	p.store.MarkChanged(ports.ProteinKind, group.Key)
	return nil
}

// proteinSequence returns the representative's sequence. A missing
// accession is non-fatal: one report line, no coordinates for its group.
func (p *Pipeline) proteinSequence(acc string) (string, bool) {
	if p.sequences == nil || acc == "" {
		return "", false
	}
	prot, err := p.sequences.Protein(acc)
	if err != nil || prot == nil || prot.Sequence == "" {
		p.progress.Report(fmt.Sprintf("Protein not found: %s.", acc))
		return "", false
	}
	return prot.Sequence, true
}

// modificationNames lists the distinct modification names, ascending.
func modificationNames(mods []ports.Modification) []string {
	seen := make(map[string]bool, len(mods))
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// carriesModOutside reports whether the assumption places the mod on at
// least one site outside the given profile.
func carriesModOutside(a *ports.PeptideAssumption, mod string, profile map[int]bool) bool {
	for _, m := range a.Mods {
		if m.Name == mod && !profile[m.Site] {
			return true
		}
	}
	return false
}
