package scoring

import (
	"sort"

	"github.com/corey/pepvalid/internal/domain/targetdecoy"
	"github.com/corey/pepvalid/internal/ports"
)

// specificMap is the shared subgroup machinery of PsmMap and PeptideMap:
// keyed target/decoy histograms plus the pooling record written by Cure.
type specificMap struct {
	groups   map[string]*targetdecoy.Map
	grouping map[string]string // pooled-away key → destination
}

func newSpecificMap() specificMap {
	return specificMap{
		groups:   make(map[string]*targetdecoy.Map),
		grouping: make(map[string]string),
	}
}

// group returns the histogram of a key, creating it on first use.
func (m *specificMap) group(key string) *targetdecoy.Map {
	g, ok := m.groups[key]
	if !ok {
		g = targetdecoy.New()
		m.groups[key] = g
	}
	return g
}

// AddPoint records one observation under a subgroup key.
func (m *specificMap) AddPoint(key string, score float64, decoy bool) {
	m.group(key).AddPoint(score, decoy)
}

// Keys lists the surviving subgroup keys, sorted.
func (m *specificMap) Keys() []string {
	keys := make([]string, 0, len(m.groups))
	for k := range m.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CorrectedKey resolves a key recorded before Cure to the subgroup that now
// holds its observations. Unpooled keys map to themselves.
func (m *specificMap) CorrectedKey(key string) string {
	for {
		dst, ok := m.grouping[key]
		if !ok {
			return key
		}
		key = dst
	}
}

// poolInto merges the src subgroup into dst (resolved through earlier
// pooling first) and records the move.
func (m *specificMap) poolInto(src, dst string) {
	dst = m.CorrectedKey(dst)
	if dst == src {
		return
	}
	m.group(dst).Absorb(m.group(src))
	delete(m.groups, src)
	m.grouping[src] = dst
}

// EstimateProbabilities cures and estimates every surviving subgroup.
func (m *specificMap) EstimateProbabilities() {
	for _, key := range m.Keys() {
		g := m.groups[key]
		g.Cure()
		g.EstimateProbabilities()
	}
}

// Probability returns the PEP of a score under a key, resolving pooling.
// Unknown keys answer 1.
func (m *specificMap) Probability(key string, score float64) float64 {
	g, ok := m.groups[m.CorrectedKey(key)]
	if !ok {
		return 1
	}
	return g.Probability(score)
}

// ComputeResults thresholds every subgroup at the given FDR (percent).
func (m *specificMap) ComputeResults(fdrPercent float64) {
	for _, key := range m.Keys() {
		m.groups[key].ComputeResults(fdrPercent)
	}
}

// ScoreLimit returns the validation threshold of the subgroup a key resolves
// to. ok is false when the subgroup is unknown or validated nothing.
func (m *specificMap) ScoreLimit(key string) (limit float64, ok bool) {
	g, found := m.groups[m.CorrectedKey(key)]
	if !found || g.NoValidated() {
		return 0, false
	}
	return g.ScoreLimit(), true
}

// Results returns the per-subgroup FDR results keyed by surviving group.
func (m *specificMap) Results() map[string]*ports.FDRResults {
	res := make(map[string]*ports.FDRResults, len(m.groups))
	for key, g := range m.groups {
		if r := g.Results(); r != nil {
			res[key] = r
		}
	}
	return res
}

// SuspiciousGroups lists the surviving subgroups with unreliable
// distributions, sorted.
func (m *specificMap) SuspiciousGroups() []string {
	var suspicious []string
	for _, key := range m.Keys() {
		if m.groups[key].SuspiciousInput() {
			suspicious = append(suspicious, key)
		}
	}
	return suspicious
}

// state serializes the surviving subgroups and the pooling record.
func (m *specificMap) state() (map[string]*ports.TargetDecoyState, map[string]string) {
	st := make(map[string]*ports.TargetDecoyState, len(m.groups))
	for key, g := range m.groups {
		st[key] = g.State()
	}
	grouping := make(map[string]string, len(m.grouping))
	for k, v := range m.grouping {
		grouping[k] = v
	}
	return st, grouping
}

// loadState rebuilds the subgroups and pooling record.
func (m *specificMap) loadState(st map[string]*ports.TargetDecoyState, grouping map[string]string) {
	for key, s := range st {
		m.groups[key] = targetdecoy.NewFromState(s)
	}
	for k, v := range grouping {
		m.grouping[k] = v
	}
}
