package ports

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Identification Match Model — Canonical Types
//
// The persisted identification model, shared by the store, the scoring
// pipeline, and the exporters. Matches are referenced by opaque string keys:
//
//   spectrum match:  "file#title"
//   peptide match:   "SEQUENCE_mod1_mod2"   (sorted mod names, no positions)
//   protein match:   "P1 P2 P3"             (sorted accessions, space-joined)
//
// Positional isomers (same sequence, same mods, different sites) share a
// peptide key on purpose: site assignment is the PTM scoring layer's job.
// =============================================================================

// ErrDuplicateFirstHit is returned when a second rank-1 assumption is added
// for the same spectrum and advocate. The input is corrupt; the run aborts.
var ErrDuplicateFirstHit = errors.New("duplicate first hit for advocate")

// Advocate identifies the search engine that produced an assumption.
type Advocate int

const (
	Mascot Advocate = iota
	OMSSA
	XTandem
	Andromeda
	MSGF
	Comet
)

var advocateNames = map[Advocate]string{
	Mascot:    "Mascot",
	OMSSA:     "OMSSA",
	XTandem:   "X!Tandem",
	Andromeda: "Andromeda",
	MSGF:      "MS-GF+",
	Comet:     "Comet",
}

func (a Advocate) String() string {
	if name, ok := advocateNames[a]; ok {
		return name
	}
	return fmt.Sprintf("advocate(%d)", int(a))
}

// ParseAdvocate resolves an engine name as written in result files.
// Matching is case-insensitive and tolerates the common punctuation variants
// ("xtandem", "X! Tandem", "msgf+").
func ParseAdvocate(name string) (Advocate, error) {
	canon := strings.ToLower(name)
	canon = strings.NewReplacer("!", "", "+", "", "-", "", " ", "").Replace(canon)
	switch canon {
	case "mascot":
		return Mascot, nil
	case "omssa":
		return OMSSA, nil
	case "xtandem", "tandem":
		return XTandem, nil
	case "andromeda":
		return Andromeda, nil
	case "msgf":
		return MSGF, nil
	case "comet":
		return Comet, nil
	}
	return 0, fmt.Errorf("unknown search engine %q", name)
}

// -----------------------------------------------------------------------------
// Spectrum keys
// -----------------------------------------------------------------------------

// SpectrumKey builds the composite key for a spectrum. The file part doubles
// as the fraction identifier throughout the pipeline.
func SpectrumKey(file, title string) string {
	return file + "#" + title
}

// SpectrumFile returns the file (fraction) part of a spectrum key.
func SpectrumFile(key string) string {
	if i := strings.Index(key, "#"); i >= 0 {
		return key[:i]
	}
	return key
}

// SpectrumTitle returns the title part of a spectrum key.
func SpectrumTitle(key string) string {
	if i := strings.Index(key, "#"); i >= 0 {
		return key[i+1:]
	}
	return ""
}

// -----------------------------------------------------------------------------
// Peptides
// -----------------------------------------------------------------------------

// Modification is one modification placed on a peptide sequence.
type Modification struct {
	Name string `json:"name"`
	Site int    `json:"site"` // 1-based position in the peptide sequence
}

// PeptideKey derives the canonical peptide key from a sequence and its
// modifications. Mod names are sorted and appended without positions, so
// assumptions that differ only in site placement collapse to one peptide.
func PeptideKey(sequence string, mods []Modification) string {
	if len(mods) == 0 {
		return sequence
	}
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	sort.Strings(names)
	return sequence + "_" + strings.Join(names, "_")
}

// ModificationFamily classifies a modification list for peptide subgrouping:
// the sorted set of distinct mod names joined by underscores, empty for an
// unmodified peptide.
func ModificationFamily(mods []Modification) string {
	if len(mods) == 0 {
		return ""
	}
	seen := make(map[string]bool, len(mods))
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// PeptideAssumption is one engine's candidate peptide for one spectrum.
// Immutable after import except for Probability, which the calibration stage
// attaches once per-engine score distributions are estimated.
type PeptideAssumption struct {
	Advocate   Advocate       `json:"advocate"`
	Rank       int            `json:"rank"`
	Sequence   string         `json:"sequence"`
	Mods       []Modification `json:"mods,omitempty"`
	Charge     int            `json:"charge"`
	Score      float64        `json:"score"` // engine raw score, lower is better
	Accessions []string       `json:"accessions,omitempty"`

	// Probability is the calibrated engine probability. 1 until attached.
	Probability float64 `json:"probability"`
}

// Key returns the peptide key of this assumption.
func (a *PeptideAssumption) Key() string {
	return PeptideKey(a.Sequence, a.Mods)
}

// SitesOf returns the 1-based sites carrying the named modification,
// ascending.
func (a *PeptideAssumption) SitesOf(mod string) []int {
	var sites []int
	for _, m := range a.Mods {
		if m.Name == mod {
			sites = append(sites, m.Site)
		}
	}
	sort.Ints(sites)
	return sites
}

// -----------------------------------------------------------------------------
// Spectrum matches
// -----------------------------------------------------------------------------

// SpectrumMatch holds every assumption recorded for one spectrum, grouped by
// advocate, plus the consensus best assumption once elected.
type SpectrumMatch struct {
	Key         string                            `json:"key"`
	Assumptions map[Advocate][]*PeptideAssumption `json:"assumptions"`
	Best        *PeptideAssumption                `json:"best,omitempty"`
	Scores      *PtmScores                        `json:"ptm_scores,omitempty"`
}

// NewSpectrumMatch creates an empty match for the given spectrum key.
func NewSpectrumMatch(key string) *SpectrumMatch {
	return &SpectrumMatch{
		Key:         key,
		Assumptions: make(map[Advocate][]*PeptideAssumption),
	}
}

// AddAssumption records a candidate. A second rank-1 candidate for the same
// advocate means the input file is corrupt: ErrDuplicateFirstHit.
func (m *SpectrumMatch) AddAssumption(a *PeptideAssumption) error {
	if a.Rank == 1 {
		for _, prev := range m.Assumptions[a.Advocate] {
			if prev.Rank == 1 {
				return fmt.Errorf("spectrum %s, %s: %w", m.Key, a.Advocate, ErrDuplicateFirstHit)
			}
		}
	}
	m.Assumptions[a.Advocate] = append(m.Assumptions[a.Advocate], a)
	return nil
}

// SortAssumptions orders every advocate's candidates by ascending raw score,
// rank breaking ties. Called once at the end of import; scoring stages rely
// on this order.
func (m *SpectrumMatch) SortAssumptions() {
	for _, list := range m.Assumptions {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Score != list[j].Score {
				return list[i].Score < list[j].Score
			}
			return list[i].Rank < list[j].Rank
		})
	}
}

// Advocates returns the advocates with at least one assumption, ascending.
// Deterministic iteration order for everything that walks the map.
func (m *SpectrumMatch) Advocates() []Advocate {
	advs := make([]Advocate, 0, len(m.Assumptions))
	for a := range m.Assumptions {
		advs = append(advs, a)
	}
	sort.Slice(advs, func(i, j int) bool { return advs[i] < advs[j] })
	return advs
}

// FirstHit returns the advocate's rank-1 assumption, nil if absent.
func (m *SpectrumMatch) FirstHit(adv Advocate) *PeptideAssumption {
	for _, a := range m.Assumptions[adv] {
		if a.Rank == 1 {
			return a
		}
	}
	return nil
}

// File returns the spectrum file (fraction) this match belongs to.
func (m *SpectrumMatch) File() string {
	return SpectrumFile(m.Key)
}

// -----------------------------------------------------------------------------
// Peptide matches
// -----------------------------------------------------------------------------

// PeptideMatch aggregates every spectrum supporting one peptide. Accessions
// is the union of parent accessions seen across the supporting spectra.
type PeptideMatch struct {
	Key          string         `json:"key"`
	Sequence     string         `json:"sequence"`
	Mods         []Modification `json:"mods,omitempty"`
	SpectrumKeys []string       `json:"spectrum_keys"`
	Accessions   []string       `json:"accessions,omitempty"`
	Scores       *PtmScores     `json:"ptm_scores,omitempty"`
}

// AddSpectrum records a supporting spectrum, ignoring duplicates.
func (m *PeptideMatch) AddSpectrum(key string) {
	for _, k := range m.SpectrumKeys {
		if k == key {
			return
		}
	}
	m.SpectrumKeys = append(m.SpectrumKeys, key)
}

// AddAccession records a parent accession, keeping the list sorted and
// duplicate free.
func (m *PeptideMatch) AddAccession(acc string) {
	for _, a := range m.Accessions {
		if a == acc {
			return
		}
	}
	m.Accessions = append(m.Accessions, acc)
	sort.Strings(m.Accessions)
}

// -----------------------------------------------------------------------------
// Protein matches
// -----------------------------------------------------------------------------

// GroupClass classifies a protein group after inference resolution.
type GroupClass int

const (
	// Single is a group with one accession and uncontested peptides.
	Single GroupClass = iota

	// Isoforms groups accessions whose descriptions all look alike.
	Isoforms

	// IsoformsUnrelated marks a mixed group: some members look alike,
	// some do not.
	IsoformsUnrelated

	// Unrelated groups accessions sharing peptides with no recognizable
	// relationship. These stay suspicious after resolution.
	Unrelated
)

func (c GroupClass) String() string {
	switch c {
	case Single:
		return "Single Protein"
	case Isoforms:
		return "Isoforms"
	case IsoformsUnrelated:
		return "Unrelated Isoforms"
	case Unrelated:
		return "Unrelated Proteins"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ProteinGroupKey builds the canonical group key: sorted accessions joined by
// a single space.
func ProteinGroupKey(accessions []string) string {
	sorted := make([]string, len(accessions))
	copy(sorted, accessions)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// GroupAccessions splits a protein group key back into its accessions.
func GroupAccessions(key string) []string {
	return strings.Fields(key)
}

// NProteins reports how many accessions a group key spans.
func NProteins(key string) int {
	return len(strings.Fields(key))
}

// GroupContains reports whether sub's accessions form a strict subset of
// shared's.
func GroupContains(shared, sub string) bool {
	if shared == sub {
		return false
	}
	in := make(map[string]bool)
	for _, acc := range GroupAccessions(shared) {
		in[acc] = true
	}
	subAccs := GroupAccessions(sub)
	if len(subAccs) >= len(in) {
		return false
	}
	for _, acc := range subAccs {
		if !in[acc] {
			return false
		}
	}
	return true
}

// ProteinMatch is a protein group: every accession sharing the member
// peptides, with one representative accession chosen by the resolver.
type ProteinMatch struct {
	Key           string     `json:"key"`
	Accessions    []string   `json:"accessions"`
	PeptideKeys   []string   `json:"peptide_keys"`
	MainAccession string     `json:"main_accession"`
	Scores        *PtmScores `json:"ptm_scores,omitempty"`
}

// NewProteinMatch creates a group over the given accessions with the first
// sorted accession as provisional representative.
func NewProteinMatch(accessions []string) *ProteinMatch {
	sorted := make([]string, len(accessions))
	copy(sorted, accessions)
	sort.Strings(sorted)
	m := &ProteinMatch{
		Key:        strings.Join(sorted, " "),
		Accessions: sorted,
	}
	if len(sorted) > 0 {
		m.MainAccession = sorted[0]
	}
	return m
}

// AddPeptide records a member peptide, ignoring duplicates.
func (m *ProteinMatch) AddPeptide(key string) {
	for _, k := range m.PeptideKeys {
		if k == key {
			return
		}
	}
	m.PeptideKeys = append(m.PeptideKeys, key)
}

// HasPeptide reports membership of a peptide key.
func (m *ProteinMatch) HasPeptide(key string) bool {
	for _, k := range m.PeptideKeys {
		if k == key {
			return true
		}
	}
	return false
}
