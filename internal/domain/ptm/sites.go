package ptm

import "strings"

// ProteinSites maps modification sites from peptide coordinates into protein
// coordinates across every occurrence of the peptide, overlapping ones
// included. The scan walks backwards with LastIndex; each window ends one
// short of covering the last match, so later occurrences may overlap it but
// never repeat it.
//
// Peptide sites are 1-based; emitted protein positions count the first
// protein residue as 0.
func ProteinSites(proteinSequence, peptideSequence string, sites []int) []int {
	if peptideSequence == "" {
		return nil
	}
	var result []int
	window := proteinSequence
	for {
		idx := strings.LastIndex(window, peptideSequence)
		if idx < 0 {
			break
		}
		for _, site := range sites {
			result = append(result, idx+site-1)
		}
		window = proteinSequence[:idx+len(peptideSequence)-1]
	}
	return result
}
