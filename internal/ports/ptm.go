package ports

import (
	"sort"
	"strconv"
	"strings"
)

// SiteConfidence grades how certain a modification site assignment is.
// Ordered: comparisons with < and > follow increasing certainty.
type SiteConfidence int

const (
	SiteNotFound SiteConfidence = iota
	SiteRandom
	SiteDoubtful
	SiteConfident
	SiteVeryConfident
)

func (c SiteConfidence) String() string {
	switch c {
	case SiteNotFound:
		return "Not Found"
	case SiteRandom:
		return "Random"
	case SiteDoubtful:
		return "Doubtful"
	case SiteConfident:
		return "Confident"
	case SiteVeryConfident:
		return "Very Confident"
	}
	return "Unknown"
}

// SiteKey encodes a site profile (a set of 1-based positions) as a map key:
// sorted positions joined by underscores, e.g. "3_7".
func SiteKey(sites []int) string {
	sorted := make([]int, len(sites))
	copy(sorted, sites)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, "_")
}

// ParseSiteKey decodes a site profile key back into positions.
func ParseSiteKey(key string) []int {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, "_")
	sites := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			sites = append(sites, n)
		}
	}
	return sites
}

// PtmScoring accumulates localization evidence for one modification on one
// match. Score maps are keyed by site profile; duplicate profiles keep the
// better (higher) score so that merges never lose evidence.
type PtmScoring struct {
	DeltaScores    map[string]float64 `json:"delta_scores,omitempty"`
	AScores        map[string]float64 `json:"a_scores,omitempty"`
	MainSites      []int              `json:"main_sites,omitempty"`
	SecondarySites []int              `json:"secondary_sites,omitempty"`
	Confidence     SiteConfidence     `json:"confidence"`
}

// NewPtmScoring returns an empty scoring at SiteRandom confidence.
func NewPtmScoring() *PtmScoring {
	return &PtmScoring{Confidence: SiteRandom}
}

// AddDeltaScore records a delta score for a site profile, keeping the max.
func (s *PtmScoring) AddDeltaScore(sites []int, score float64) {
	if s.DeltaScores == nil {
		s.DeltaScores = make(map[string]float64)
	}
	key := SiteKey(sites)
	if prev, ok := s.DeltaScores[key]; !ok || score > prev {
		s.DeltaScores[key] = score
	}
}

// AddAScore records an A-score for a site profile, keeping the max.
func (s *PtmScoring) AddAScore(sites []int, score float64) {
	if s.AScores == nil {
		s.AScores = make(map[string]float64)
	}
	key := SiteKey(sites)
	if prev, ok := s.AScores[key]; !ok || score > prev {
		s.AScores[key] = score
	}
}

// BestDeltaKey returns the site profile with the highest delta score, the
// lexicographically smallest key on ties, "" when no delta was recorded.
func (s *PtmScoring) BestDeltaKey() string {
	return bestKey(s.DeltaScores)
}

// BestAKey returns the site profile with the highest A-score, "" when no
// A-score was recorded.
func (s *PtmScoring) BestAKey() string {
	return bestKey(s.AScores)
}

func bestKey(scores map[string]float64) string {
	best := ""
	bestScore := 0.0
	for key, score := range scores {
		if best == "" || score > bestScore || (score == bestScore && key < best) {
			best = key
			bestScore = score
		}
	}
	return best
}

// DeltaScore returns the delta score recorded for a profile, 0 if absent.
func (s *PtmScoring) DeltaScore(key string) float64 {
	return s.DeltaScores[key]
}

// AScore returns the A-score recorded for a profile, 0 if absent.
func (s *PtmScoring) AScore(key string) float64 {
	return s.AScores[key]
}

// AddAll merges another scoring into this one: score maps union with max,
// site lists union, confidence keeps the higher grade.
func (s *PtmScoring) AddAll(other *PtmScoring) {
	if other == nil {
		return
	}
	for key, score := range other.DeltaScores {
		s.AddDeltaScore(ParseSiteKey(key), score)
	}
	for key, score := range other.AScores {
		s.AddAScore(ParseSiteKey(key), score)
	}
	for _, site := range other.MainSites {
		s.addMain(site)
	}
	for _, site := range other.SecondarySites {
		s.addSecondary(site)
	}
	if other.Confidence > s.Confidence {
		s.Confidence = other.Confidence
	}
}

// SetSite commits the retained site profile at the given confidence. Main
// sites come from the retained profile; every other scored profile feeds the
// secondary list.
func (s *PtmScoring) SetSite(retainedKey string, conf SiteConfidence) {
	s.MainSites = ParseSiteKey(retainedKey)
	s.Confidence = conf
	s.SecondarySites = nil
	main := make(map[int]bool, len(s.MainSites))
	for _, site := range s.MainSites {
		main[site] = true
	}
	for key := range s.DeltaScores {
		if key == retainedKey {
			continue
		}
		for _, site := range ParseSiteKey(key) {
			if !main[site] {
				s.addSecondary(site)
			}
		}
	}
	for key := range s.AScores {
		if key == retainedKey {
			continue
		}
		for _, site := range ParseSiteKey(key) {
			if !main[site] {
				s.addSecondary(site)
			}
		}
	}
}

func (s *PtmScoring) addMain(site int) {
	for _, prev := range s.MainSites {
		if prev == site {
			return
		}
	}
	s.MainSites = append(s.MainSites, site)
	sort.Ints(s.MainSites)
}

func (s *PtmScoring) addSecondary(site int) {
	for _, prev := range s.SecondarySites {
		if prev == site {
			return
		}
	}
	s.SecondarySites = append(s.SecondarySites, site)
	sort.Ints(s.SecondarySites)
}

// PtmScores bundles the per-modification scorings of one match. On protein
// matches the site lists carry protein-coordinate positions accumulated from
// member peptides.
type PtmScores struct {
	Scorings       map[string]*PtmScoring `json:"scorings,omitempty"`
	MainSites      map[string][]int       `json:"main_sites,omitempty"`
	SecondarySites map[string][]int       `json:"secondary_sites,omitempty"`
}

// NewPtmScores returns an empty score bundle.
func NewPtmScores() *PtmScores {
	return &PtmScores{}
}

// Scoring returns the scoring for a mod, nil when the mod was never scored.
func (s *PtmScores) Scoring(mod string) *PtmScoring {
	if s.Scorings == nil {
		return nil
	}
	return s.Scorings[mod]
}

// EnsureScoring returns the scoring for a mod, creating it on first use.
func (s *PtmScores) EnsureScoring(mod string) *PtmScoring {
	if s.Scorings == nil {
		s.Scorings = make(map[string]*PtmScoring)
	}
	sc, ok := s.Scorings[mod]
	if !ok {
		sc = NewPtmScoring()
		s.Scorings[mod] = sc
	}
	return sc
}

// Mods lists the scored modification names, ascending.
func (s *PtmScores) Mods() []string {
	mods := make([]string, 0, len(s.Scorings))
	for mod := range s.Scorings {
		mods = append(mods, mod)
	}
	sort.Strings(mods)
	return mods
}

// AddMainSite records a confirmed site for a mod, ignoring duplicates.
func (s *PtmScores) AddMainSite(mod string, site int) {
	if s.MainSites == nil {
		s.MainSites = make(map[string][]int)
	}
	s.MainSites[mod] = addSite(s.MainSites[mod], site)
}

// AddSecondarySite records a candidate site for a mod, ignoring duplicates.
func (s *PtmScores) AddSecondarySite(mod string, site int) {
	if s.SecondarySites == nil {
		s.SecondarySites = make(map[string][]int)
	}
	s.SecondarySites[mod] = addSite(s.SecondarySites[mod], site)
}

func addSite(sites []int, site int) []int {
	for _, prev := range sites {
		if prev == site {
			return sites
		}
	}
	sites = append(sites, site)
	sort.Ints(sites)
	return sites
}
