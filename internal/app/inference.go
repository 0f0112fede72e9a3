package app

import (
	"fmt"
	"sort"

	"github.com/corey/pepvalid/internal/domain/infer"
	"github.com/corey/pepvalid/internal/ports"
)

// groupEntry carries the per-group figures the resolver orders by.
type groupEntry struct {
	key       string
	score     float64
	nPeptides int
	nSpectra  int
}

// resolveProteinGroups runs the two inference passes over the protein
// groups: merging shared groups into their better-scoring strict subsets,
// then classifying the residual ambiguity of every surviving group. It ends
// by fixing the canonical protein ordering in the metrics.
func (p *Pipeline) resolveProteinGroups() error {
	entries, err := p.loadGroupEntries()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return entries[i].key < entries[j].key
	})

	nMerged, err := p.mergeSharedGroups(entries)
	if err != nil {
		return err
	}
	if p.progress.Canceled() {
		return nil
	}

	return p.classifyGroups(nMerged)
}

// loadGroupEntries collects every stored group with its raw score.
func (p *Pipeline) loadGroupEntries() ([]groupEntry, error) {
	keys, err := p.store.ProteinKeys()
	if err != nil {
		return nil, fmt.Errorf("list protein matches: %w", err)
	}
	entries := make([]groupEntry, 0, len(keys))
	for _, key := range keys {
		param, err := p.store.Parameter(ports.ProteinKind, key)
		if err != nil {
			return nil, fmt.Errorf("protein parameter %s: %w", key, err)
		}
		if param == nil {
			continue
		}
		entries = append(entries, groupEntry{key: key, score: param.Score})
	}
	return entries, nil
}

// mergeSharedGroups copies each qualifying shared group's peptides into its
// strict-subset groups and removes the shared group. A shared group
// qualifies when it spans at least two accessions at a raw score below 1; a
// subset group receives when its score is at least as good.
func (p *Pipeline) mergeSharedGroups(entries []groupEntry) (int, error) {
	p.progress.SetTitle("Resolving protein inference")
	p.progress.SetMax(len(entries))

	removed := make(map[string]bool)
	nMerged := 0
	for _, e := range entries {
		if p.progress.Canceled() {
			return nMerged, nil
		}
		p.progress.Step()
		if removed[e.key] || ports.NProteins(e.key) < 2 || e.score >= 1 {
			continue
		}
		shared, err := p.store.ProteinMatch(e.key)
		if err != nil {
			return nMerged, fmt.Errorf("protein match %s: %w", e.key, err)
		}
		if shared == nil {
			continue
		}

		merged := false
		for _, other := range entries {
			if removed[other.key] || other.score > e.score {
				continue
			}
			if !ports.GroupContains(e.key, other.key) {
				continue
			}
			sub, err := p.store.ProteinMatch(other.key)
			if err != nil {
				return nMerged, fmt.Errorf("protein match %s: %w", other.key, err)
			}
			if sub == nil {
				continue
			}
			for _, pepKey := range shared.PeptideKeys {
				sub.AddPeptide(pepKey)
			}
			p.store.MarkChanged(ports.ProteinKind, other.key)
			merged = true
		}
		if merged {
			p.proteinMap.RemovePoint(e.score, p.anyDecoy(shared.Accessions))
			if err := p.store.RemoveProteinMatch(e.key); err != nil {
				return nMerged, fmt.Errorf("remove protein match %s: %w", e.key, err)
			}
			removed[e.key] = true
			nMerged++
		}
	}
	return nMerged, nil
}

// classifyGroups grades the residual ambiguity of every surviving non-decoy
// group, picks group representatives by description similarity, propagates
// classes to member peptides, and fixes the canonical protein ordering.
func (p *Pipeline) classifyGroups(nMerged int) error {
	entries, err := p.survivingEntries()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return canonicalLess(entries[i], entries[j]) })

	p.progress.SetTitle("Classifying protein groups")
	p.progress.SetMax(len(entries))

	nResolved := nMerged
	nShared := 0
	nSuspicious := 0
	for _, e := range entries {
		if p.progress.Canceled() {
			return nil
		}
		p.progress.Step()
		group, err := p.store.ProteinMatch(e.key)
		if err != nil {
			return fmt.Errorf("protein match %s: %w", e.key, err)
		}
		if group == nil || p.anyDecoy(group.Accessions) {
			continue
		}
		if ports.NProteins(e.key) >= 2 {
			nShared++
		}

		class, err := p.classifyGroup(group)
		if err != nil {
			return err
		}
		switch class {
		case ports.Isoforms:
			nResolved++
		case ports.Unrelated:
			nSuspicious++
		}

		param, err := p.store.Parameter(ports.ProteinKind, e.key)
		if err != nil {
			return fmt.Errorf("protein parameter %s: %w", e.key, err)
		}
		if param != nil {
			param.GroupClass = class
			if err := p.store.SetParameter(ports.ProteinKind, e.key, param); err != nil {
				return fmt.Errorf("set protein parameter %s: %w", e.key, err)
			}
		}

		if mw, ok := p.proteinMW(group.MainAccession); ok && mw > p.metrics.MaxMW {
			p.metrics.MaxMW = mw
		}
	}

	p.fixProteinOrdering(entries)
	p.progress.Report(fmt.Sprintf("%d conflicts resolved. %d protein groups remaining (%d suspicious).",
		nResolved, nShared, nSuspicious))
	return nil
}

// classifyGroup grades one group, promotes its representative, and writes
// the per-peptide classes.
func (p *Pipeline) classifyGroup(group *ports.ProteinMatch) (ports.GroupClass, error) {
	accessions := group.Accessions
	if len(accessions) < 2 {
		return ports.Single, p.classifyPeptides(group, ports.Single)
	}

	tokens := make([][]string, len(accessions))
	for i, acc := range accessions {
		tokens[i] = infer.DescriptionTokens(p.description(acc))
	}
	similar := func(i, j int) bool { return infer.Similar(tokens[i], tokens[j]) }

	// The first similar pair promotes its first member to representative.
	mainIdx := 0
promotion:
	for i := range accessions {
		for j := i + 1; j < len(accessions); j++ {
			if similar(i, j) {
				mainIdx = i
				break promotion
			}
		}
	}

	allSimilar := true
	anySimilar := false
	for j := range accessions {
		if j == mainIdx {
			continue
		}
		if similar(mainIdx, j) {
			anySimilar = true
		} else {
			allSimilar = false
		}
	}

	var class ports.GroupClass
	switch {
	case allSimilar:
		class = ports.Isoforms
	case anySimilar:
		class = ports.IsoformsUnrelated
	default:
		class = ports.Unrelated
	}

	if group.MainAccession != accessions[mainIdx] {
		group.MainAccession = accessions[mainIdx]
		p.store.MarkChanged(ports.ProteinKind, group.Key)
	}
	return class, p.classifyPeptides(group, class)
}

// classifyPeptides writes each member peptide's class: the group class,
// adjusted by the outside-parent checks.
func (p *Pipeline) classifyPeptides(group *ports.ProteinMatch, class ports.GroupClass) error {
	inGroup := make(map[string]bool, len(group.Accessions))
	for _, acc := range group.Accessions {
		inGroup[acc] = true
	}
	mainDesc := p.description(group.MainAccession)

	for _, pepKey := range group.PeptideKeys {
		peptide, err := p.store.PeptideMatch(pepKey)
		if err != nil {
			return fmt.Errorf("peptide match %s: %w", pepKey, err)
		}
		if peptide == nil {
			continue
		}

		pepClass := class
		for _, acc := range peptide.Accessions {
			if inGroup[acc] {
				continue
			}
			outside := p.description(acc)
			switch class {
			case ports.Single:
				// A shared peptide under a single-accession group:
				// isoform evidence when the outsider looks alike,
				// suspicious otherwise.
				if outside != "" && infer.SimilarDescriptions(mainDesc, outside) {
					if pepClass == ports.Single {
						pepClass = ports.Isoforms
					}
				} else {
					pepClass = ports.Unrelated
				}
			case ports.Isoforms:
				if !infer.SimilarDescriptions(mainDesc, outside) {
					pepClass = ports.IsoformsUnrelated
				}
			}
		}

		param, err := p.store.Parameter(ports.PeptideKind, pepKey)
		if err != nil {
			return fmt.Errorf("peptide parameter %s: %w", pepKey, err)
		}
		if param == nil {
			continue
		}
		param.GroupClass = pepClass
		if err := p.store.SetParameter(ports.PeptideKind, pepKey, param); err != nil {
			return fmt.Errorf("set peptide parameter %s: %w", pepKey, err)
		}
	}
	return nil
}

// survivingEntries rebuilds the group figures after the merge pass moved
// memberships around.
func (p *Pipeline) survivingEntries() ([]groupEntry, error) {
	keys, err := p.store.ProteinKeys()
	if err != nil {
		return nil, fmt.Errorf("list protein matches: %w", err)
	}
	entries := make([]groupEntry, 0, len(keys))
	for _, key := range keys {
		group, err := p.store.ProteinMatch(key)
		if err != nil {
			return nil, fmt.Errorf("protein match %s: %w", key, err)
		}
		if group == nil {
			continue
		}
		param, err := p.store.Parameter(ports.ProteinKind, key)
		if err != nil {
			return nil, fmt.Errorf("protein parameter %s: %w", key, err)
		}
		if param == nil {
			continue
		}
		nSpectra, err := groupSpectrumCount(p.store, group)
		if err != nil {
			return nil, err
		}
		entries = append(entries, groupEntry{
			key:       key,
			score:     param.Score,
			nPeptides: len(group.PeptideKeys),
			nSpectra:  nSpectra,
		})
	}
	return entries, nil
}

// canonicalLess is the canonical protein ordering: score ascending, peptide
// count descending, spectrum count descending, key ascending.
func canonicalLess(a, b groupEntry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.nPeptides != b.nPeptides {
		return a.nPeptides > b.nPeptides
	}
	if a.nSpectra != b.nSpectra {
		return a.nSpectra > b.nSpectra
	}
	return a.key < b.key
}

// fixProteinOrdering writes the canonical key list and the running maxima
// into the metrics. entries must already be in canonical order.
func (p *Pipeline) fixProteinOrdering(entries []groupEntry) {
	keys := make([]string, len(entries))
	maxPeptides := 0
	maxSpectra := 0
	for i, e := range entries {
		keys[i] = e.key
		if e.nPeptides > maxPeptides {
			maxPeptides = e.nPeptides
		}
		if e.nSpectra > maxSpectra {
			maxSpectra = e.nSpectra
		}
	}
	p.metrics.ProteinKeys = keys
	p.metrics.MaxNPeptides = maxPeptides
	p.metrics.MaxNSpectra = maxSpectra
}

// description returns a protein's free-text description, empty when the
// accession (or the whole provider) is unavailable.
func (p *Pipeline) description(acc string) string {
	if p.sequences == nil || acc == "" {
		return ""
	}
	prot, err := p.sequences.Protein(acc)
	if err != nil || prot == nil {
		return ""
	}
	return prot.Description
}

// proteinMW returns a protein's molecular weight. A missing accession is
// non-fatal: one report line, degraded metrics for that group.
func (p *Pipeline) proteinMW(acc string) (float64, bool) {
	if p.sequences == nil || acc == "" {
		return 0, false
	}
	prot, err := p.sequences.Protein(acc)
	if err != nil || prot == nil {
		p.progress.Report(fmt.Sprintf("Protein not found: %s.", acc))
		return 0, false
	}
	return prot.MW, true
}
