package ptm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProteinSites_SingleOccurrence(t *testing.T) {
	// Protein MKSAPKY, peptide SAP starting at index 2, site 1 = the S.
	got := ProteinSites("MKSAPKY", "SAP", []int{1})
	assert.Equal(t, []int{2}, got)
}

func TestProteinSites_RepeatedPeptide(t *testing.T) {
	// KSA sits at protein indexes 1 and 5; occurrences surface back to
	// front. Site 2 is the serine of the peptide.
	got := ProteinSites("MKSAPKSA", "KSA", []int{2})
	assert.Equal(t, []int{6, 2}, got)
}

func TestProteinSites_OverlappingOccurrences(t *testing.T) {
	got := ProteinSites("AAAA", "AA", []int{1})
	assert.Equal(t, []int{2, 1, 0}, got)
}

func TestProteinSites_MultipleSitesPerOccurrence(t *testing.T) {
	got := ProteinSites("MKSAPKSA", "KSA", []int{1, 3})
	assert.Equal(t, []int{5, 7, 1, 3}, got)
}

func TestProteinSites_PeptideAtStart(t *testing.T) {
	got := ProteinSites("KSAPPP", "KSA", []int{2})
	assert.Equal(t, []int{1}, got)
}

func TestProteinSites_SingleResiduePeptide(t *testing.T) {
	got := ProteinSites("KAK", "K", []int{1})
	assert.Equal(t, []int{2, 0}, got)
}

func TestProteinSites_NotFound(t *testing.T) {
	assert.Nil(t, ProteinSites("MKAY", "WW", []int{1}))
	assert.Nil(t, ProteinSites("", "WW", []int{1}))
}

func TestProteinSites_EmptyPeptide(t *testing.T) {
	assert.Nil(t, ProteinSites("MKAY", "", []int{1}))
}
