package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptionTokens_KeepsWordsLongerThanThree(t *testing.T) {
	tokens := DescriptionTokens("Keratin type II cytoskeletal 1 OS=Homo sapiens")
	assert.Equal(t, []string{"Keratin", "type", "cytoskeletal", "OS=Homo", "sapiens"}, tokens)
}

func TestDescriptionTokens_EmptyDescription(t *testing.T) {
	assert.Nil(t, DescriptionTokens(""))
}

func TestSimilar_HalfTheTokensSuffice(t *testing.T) {
	a := []string{"Keratin", "type", "cytoskeletal", "sapiens", "epidermal"}
	b := []string{"Keratin", "type", "cuticular", "murine", "basal"}
	// 2 of 5 shared, threshold is 5/2 = 2.
	assert.True(t, Similar(a, b))
}

func TestSimilar_DifferentLengthsNeverMatch(t *testing.T) {
	a := []string{"Keratin", "type", "cytoskeletal"}
	b := []string{"Keratin", "type", "cytoskeletal", "sapiens"}
	assert.False(t, Similar(a, b))
}

func TestSimilar_BothEmpty(t *testing.T) {
	assert.True(t, Similar(nil, nil))
}

func TestSimilarDescriptions(t *testing.T) {
	assert.True(t, SimilarDescriptions(
		"Isoform alpha chain protein OS=Homo",
		"Isoform beta- chain protein OS=Homo"))
	assert.False(t, SimilarDescriptions(
		"Isoform alpha chain protein",
		"Completely different annotation text"))
}
