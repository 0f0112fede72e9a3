package scoring

import (
	"strconv"
	"strings"

	"github.com/corey/pepvalid/internal/ports"
)

// PsmMap partitions spectrum matches by identification charge and fraction.
// Fragmentation statistics differ across charge states and instrument runs,
// so each context gets its own target/decoy histogram.
type PsmMap struct {
	specificMap
}

// NewPsmMap returns an empty PSM map.
func NewPsmMap() *PsmMap {
	return &PsmMap{specificMap: newSpecificMap()}
}

// NewPsmMapFromState rebuilds the map from serialized state.
func NewPsmMapFromState(st map[string]*ports.TargetDecoyState, grouping map[string]string) *PsmMap {
	m := NewPsmMap()
	m.loadState(st, grouping)
	return m
}

// State serializes the surviving subgroups and the pooling record.
func (m *PsmMap) State() (map[string]*ports.TargetDecoyState, map[string]string) {
	return m.state()
}

// PsmKey builds the subgroup key for a charge and fraction file.
func PsmKey(charge int, file string) string {
	return strconv.Itoa(charge) + "@" + file
}

// Key derives the subgroup key of a spectrum match from its elected best
// assumption. Consensus election must have run first.
func (m *PsmMap) Key(match *ports.SpectrumMatch) string {
	return PsmKey(match.Best.Charge, match.File())
}

// chargeOf strips the fraction part off a subgroup key.
func chargeOf(key string) string {
	if i := strings.Index(key, "@"); i >= 0 {
		return key[:i]
	}
	return key
}

// Cure pools subgroups too sparse to estimate on their own. Sparse
// charge+fraction groups first collapse into a per-charge pool; charge pools
// still below the population floor climb to the next richer charge, or into
// the largest surviving group when no richer charge qualifies.
func (m *PsmMap) Cure() {
	for _, key := range m.Keys() {
		if !strings.Contains(key, "@") {
			continue
		}
		if m.groups[key].Size() >= minGroupSize {
			continue
		}
		m.poolInto(key, chargeOf(key))
	}

	for _, key := range m.Keys() {
		if strings.Contains(key, "@") {
			continue
		}
		if m.groups[key].Size() >= minGroupSize {
			continue
		}
		if dst := m.poolDestination(key); dst != "" {
			m.poolInto(key, dst)
		}
	}
}

// poolDestination picks where a sparse charge pool goes: the nearest richer
// charge pool above it, else the largest other group. Empty when the map has
// nowhere else to put it.
func (m *PsmMap) poolDestination(key string) string {
	charge, err := strconv.Atoi(key)
	if err != nil {
		return ""
	}

	best := ""
	bestCharge := 0
	largest := ""
	largestSize := 0
	for _, other := range m.Keys() {
		if other == key {
			continue
		}
		size := m.groups[other].Size()
		if size > largestSize || (size == largestSize && (largest == "" || other < largest)) {
			largest = other
			largestSize = size
		}
		if strings.Contains(other, "@") || size < minGroupSize {
			continue
		}
		c, err := strconv.Atoi(other)
		if err != nil || c <= charge {
			continue
		}
		if best == "" || c < bestCharge {
			best = other
			bestCharge = c
		}
	}
	if best != "" {
		return best
	}
	return largest
}
