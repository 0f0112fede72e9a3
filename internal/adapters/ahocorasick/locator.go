// Package ahocorasick locates peptide sequences inside protein sequences
// using an Aho-Corasick automaton. It wraps the petar-dambovaliev/aho-corasick
// library for O(n + m + z) matching, so mapping thousands of peptides against
// a whole proteome is one pass per protein instead of one scan per peptide.
package ahocorasick

import (
	"sort"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// Locator maps peptide sequences to the proteins that contain them.
// NewLocator compiles the automaton; Scan feeds proteins through it.
// Matching is case sensitive, callers normalize sequences first.
type Locator struct {
	automaton aho.AhoCorasick
	peptides  []string

	accessions map[string]map[string]bool // peptide -> accession set
	counts     map[string]int             // accession -> occurrence count
}

// NewLocator compiles an Aho-Corasick automaton over the given peptide
// sequences. Duplicates and empty strings are dropped.
func NewLocator(peptides []string) *Locator {
	seen := make(map[string]bool, len(peptides))
	var distinct []string
	for _, p := range peptides {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		distinct = append(distinct, p)
	}

	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		DFA: true,
	})
	return &Locator{
		automaton:  builder.Build(distinct),
		peptides:   distinct,
		accessions: make(map[string]map[string]bool),
		counts:     make(map[string]int),
	}
}

// Scan feeds one protein sequence through the automaton, recording every
// peptide occurrence under the given accession. Overlapping occurrences
// all count.
func (l *Locator) Scan(accession, sequence string) {
	if len(l.peptides) == 0 {
		return
	}
	iter := l.automaton.IterOverlappingByte([]byte(sequence))
	for next := iter.Next(); next != nil; next = iter.Next() {
		m := *next
		peptide := l.peptides[m.Pattern()]
		set := l.accessions[peptide]
		if set == nil {
			set = make(map[string]bool)
			l.accessions[peptide] = set
		}
		set[accession] = true
		l.counts[accession]++
	}
}

// Accessions returns the accessions of every scanned protein containing
// the peptide, sorted. Nil when the peptide was never seen.
func (l *Locator) Accessions(peptide string) []string {
	set := l.accessions[peptide]
	if len(set) == 0 {
		return nil
	}
	accessions := make([]string, 0, len(set))
	for acc := range set {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)
	return accessions
}

// Occurrences returns how many peptide occurrences were recorded in the
// protein with the given accession.
func (l *Locator) Occurrences(accession string) int {
	return l.counts[accession]
}

// NPeptides returns the number of distinct peptides in the automaton.
func (l *Locator) NPeptides() int {
	return len(l.peptides)
}
