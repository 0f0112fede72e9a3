package scoring

import "github.com/corey/pepvalid/internal/ports"

// DustbinKey is the shared subgroup collecting modification families too
// rare to estimate on their own.
const DustbinKey = "other"

// PeptideMap partitions peptide matches by modification family. Modified
// peptides score against their own kind; rare families pool into a dustbin.
type PeptideMap struct {
	specificMap
}

// NewPeptideMap returns an empty peptide map.
func NewPeptideMap() *PeptideMap {
	return &PeptideMap{specificMap: newSpecificMap()}
}

// NewPeptideMapFromState rebuilds the map from serialized state.
func NewPeptideMapFromState(st map[string]*ports.TargetDecoyState, grouping map[string]string) *PeptideMap {
	m := NewPeptideMap()
	m.loadState(st, grouping)
	return m
}

// State serializes the surviving subgroups and the pooling record.
func (m *PeptideMap) State() (map[string]*ports.TargetDecoyState, map[string]string) {
	return m.state()
}

// Key derives the subgroup key of a peptide match: its modification family.
func (m *PeptideMap) Key(match *ports.PeptideMatch) string {
	return ports.ModificationFamily(match.Mods)
}

// Cure pools every modification family below the population floor into the
// dustbin group.
func (m *PeptideMap) Cure() {
	for _, key := range m.Keys() {
		if key == DustbinKey {
			continue
		}
		if m.groups[key].Size() >= minGroupSize {
			continue
		}
		m.poolInto(key, DustbinKey)
	}
}
