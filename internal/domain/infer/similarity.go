// Package infer holds the pure helpers of protein inference resolution.
package infer

import "strings"

// DescriptionTokens splits a protein description into its informative words:
// space-separated tokens longer than three characters. A missing description
// yields no tokens.
func DescriptionTokens(description string) []string {
	if description == "" {
		return nil
	}
	var tokens []string
	for _, word := range strings.Split(description, " ") {
		if len(word) > 3 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// Similar reports whether two token lists describe alike proteins: same
// length and at least half the tokens (integer division) in common. Two
// empty lists are alike.
//
// This is a crude heuristic kept for result continuity; it treats token
// lists of different lengths as unrelated no matter the overlap.
func Similar(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	in := make(map[string]bool, len(a))
	for _, tok := range a {
		in[tok] = true
	}
	matches := 0
	for _, tok := range b {
		if in[tok] {
			matches++
		}
	}
	return matches >= len(a)/2
}

// SimilarDescriptions is the one-shot form over raw description strings.
func SimilarDescriptions(a, b string) bool {
	return Similar(DescriptionTokens(a), DescriptionTokens(b))
}
