package ahocorasick

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocator_MapsPeptidesToProteins(t *testing.T) {
	l := NewLocator([]string{"SAPK", "MKLM"})
	l.Scan("P1", "MKLMSAPKY")
	l.Scan("P2", "AAASAPKAAA")

	assert.Equal(t, []string{"P1", "P2"}, l.Accessions("SAPK"))
	assert.Equal(t, []string{"P1"}, l.Accessions("MKLM"))
}

func TestLocator_UnseenPeptideIsNil(t *testing.T) {
	l := NewLocator([]string{"SAPK"})
	l.Scan("P1", "MKLM")

	assert.Nil(t, l.Accessions("SAPK"))
	assert.Nil(t, l.Accessions("NEVERBUILT"))
}

func TestLocator_CountsOverlappingOccurrences(t *testing.T) {
	l := NewLocator([]string{"AA"})
	l.Scan("P1", "AAAA")

	assert.Equal(t, 3, l.Occurrences("P1"))
	assert.Equal(t, 0, l.Occurrences("P2"))
}

func TestLocator_CountsAccumulateAcrossPeptides(t *testing.T) {
	l := NewLocator([]string{"KLM", "SAP"})
	l.Scan("P1", "KLMSAPKLM")

	assert.Equal(t, 3, l.Occurrences("P1"))
}

func TestLocator_OverlappingPatternsBothMatch(t *testing.T) {
	l := NewLocator([]string{"KLM", "KLMN"})
	l.Scan("P1", "AKLMNA")

	assert.Equal(t, []string{"P1"}, l.Accessions("KLM"))
	assert.Equal(t, []string{"P1"}, l.Accessions("KLMN"))
}

func TestLocator_DuplicateAndEmptyPeptidesCollapse(t *testing.T) {
	l := NewLocator([]string{"SAPK", "", "SAPK", "KY"})
	assert.Equal(t, 2, l.NPeptides())

	l.Scan("P1", "SAPKY")
	assert.Equal(t, []string{"P1"}, l.Accessions("SAPK"))
	assert.Equal(t, 2, l.Occurrences("P1"))
}

func TestLocator_MatchingIsCaseSensitive(t *testing.T) {
	l := NewLocator([]string{"SAPK"})
	l.Scan("P1", "sapk")

	assert.Nil(t, l.Accessions("SAPK"))
}

func TestLocator_EmptyPatternSetScansQuietly(t *testing.T) {
	l := NewLocator(nil)
	l.Scan("P1", "MKLMSAPKY")

	assert.Equal(t, 0, l.NPeptides())
	assert.Equal(t, 0, l.Occurrences("P1"))
}
