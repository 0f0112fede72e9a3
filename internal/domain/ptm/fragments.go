// Package ptm scores the placement of post-translational modifications:
// theoretical fragment generation, the A-score over observed spectra, and
// the mapping of peptide sites into protein coordinates.
package ptm

import "strings"

// Monoisotopic masses.
const (
	protonMass = 1.00727646688
	waterMass  = 18.0105646863
)

// residueMass holds the monoisotopic residue masses of the twenty standard
// amino acids.
var residueMass = map[byte]float64{
	'G': 57.02146, 'A': 71.03711, 'S': 87.03203, 'P': 97.05276,
	'V': 99.06841, 'T': 101.04768, 'C': 103.00919, 'L': 113.08406,
	'I': 113.08406, 'N': 114.04293, 'D': 115.02694, 'Q': 128.05858,
	'K': 128.09496, 'E': 129.04259, 'M': 131.04049, 'H': 137.05891,
	'F': 147.06841, 'R': 156.10111, 'Y': 163.06333, 'W': 186.07931,
}

// SequenceMass returns the monoisotopic mass of a peptide or protein
// sequence in Dalton, water included. Unknown residues contribute no mass.
func SequenceMass(sequence string) float64 {
	total := waterMass
	for i := 0; i < len(sequence); i++ {
		total += residueMass[sequence[i]]
	}
	return total
}

// Mod describes a scorable modification: the residues it can sit on and its
// monoisotopic mass shift.
type Mod struct {
	Residues string
	Mass     float64
}

// knownMods are the modifications the scorer understands out of the box.
// Sites of a mod missing here fall back to the residues it was observed on.
var knownMods = map[string]Mod{
	"Phospho":    {Residues: "STY", Mass: 79.96633},
	"Oxidation":  {Residues: "M", Mass: 15.99491},
	"Acetyl":     {Residues: "K", Mass: 42.01057},
	"Methyl":     {Residues: "KR", Mass: 14.01565},
	"Dimethyl":   {Residues: "KR", Mass: 28.03130},
	"Trimethyl":  {Residues: "K", Mass: 42.04695},
	"GlyGly":     {Residues: "K", Mass: 114.04293},
	"Deamidated": {Residues: "NQ", Mass: 0.98402},
}

// ModMass returns the mass shift of a modification, 0 when unknown.
func ModMass(name string) float64 {
	return knownMods[name].Mass
}

// CandidateSites lists every 1-based position of the sequence that could
// carry the modification: positions holding one of the mod's target
// residues. For a modification the registry does not know, the residues
// observed at its reported sites stand in as targets.
func CandidateSites(sequence, mod string, observedSites []int) []int {
	residues := knownMods[mod].Residues
	if residues == "" {
		seen := make(map[byte]bool)
		for _, s := range observedSites {
			if s >= 1 && s <= len(sequence) {
				seen[sequence[s-1]] = true
			}
		}
		var b strings.Builder
		for r := range seen {
			b.WriteByte(r)
		}
		residues = b.String()
	}
	var sites []int
	for i := 0; i < len(sequence); i++ {
		if strings.IndexByte(residues, sequence[i]) >= 0 {
			sites = append(sites, i+1)
		}
	}
	return sites
}

// fragmentMzs computes the singly charged b and y ion m/z values of a
// peptide carrying the given mod at modSite (0 for unmodified). Unknown
// residues contribute no mass.
func fragmentMzs(sequence string, modMass float64, modSite int) []float64 {
	n := len(sequence)
	if n < 2 {
		return nil
	}
	prefix := make([]float64, n+1)
	for i := 1; i <= n; i++ {
		prefix[i] = prefix[i-1] + residueMass[sequence[i-1]]
		if i == modSite {
			prefix[i] += modMass
		}
	}
	total := prefix[n]

	mzs := make([]float64, 0, 2*(n-1))
	for i := 1; i < n; i++ {
		// b_i, then y_i, singly charged.
		mzs = append(mzs, prefix[i]+protonMass)
		mzs = append(mzs, total-prefix[n-i]+waterMass+protonMass)
	}
	return mzs
}

// siteDetermining returns the fragment m/z values that distinguish placing
// the mod at siteA from placing it at siteB: ions whose mass changes under
// exactly one of the two placements.
func siteDetermining(sequence string, modMass float64, siteA, siteB int) (forA, forB []float64) {
	a := fragmentMzs(sequence, modMass, siteA)
	b := fragmentMzs(sequence, modMass, siteB)
	for i := range a {
		if a[i] != b[i] {
			forA = append(forA, a[i])
			forB = append(forB, b[i])
		}
	}
	return forA, forB
}
