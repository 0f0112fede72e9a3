package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/corey/pepvalid/internal/ports"
)

// Report export file names.
const (
	PsmReportFile     = "psms.tsv"
	PeptideReportFile = "peptides.tsv"
	ProteinReportFile = "proteins.tsv"
)

// ReportStats sums up one report export.
type ReportStats struct {
	Psms     int
	Peptides int
	Proteins int
	Dir      string
}

// ExportReport writes the three tab-separated report sections into outDir:
// one row per consensus PSM, per peptide, per protein group. Proteins come
// out in the canonical resolver ordering. A canceled export writes no
// files. Molecular weight and description columns stay blank without a
// loaded sequence database.
func (a *App) ExportReport(outDir string, progress ports.ProgressHandler) (*ReportStats, error) {
	if progress == nil {
		progress = ports.NopProgress{}
	}
	stats := &ReportStats{Dir: outDir}

	psms, nPsms, err := a.psmReport(progress)
	if err != nil {
		return stats, err
	}
	if progress.Canceled() {
		return stats, nil
	}
	peptides, nPeptides, err := a.peptideReport(progress)
	if err != nil {
		return stats, err
	}
	if progress.Canceled() {
		return stats, nil
	}
	proteins, nProteins, err := a.proteinReport(progress)
	if err != nil {
		return stats, err
	}
	if progress.Canceled() {
		return stats, nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return stats, fmt.Errorf("create report dir: %w", err)
	}
	sections := []struct {
		name    string
		content string
	}{
		{PsmReportFile, psms},
		{PeptideReportFile, peptides},
		{ProteinReportFile, proteins},
	}
	for _, section := range sections {
		if err := os.WriteFile(filepath.Join(outDir, section.name), []byte(section.content), 0644); err != nil {
			return stats, fmt.Errorf("write %s: %w", section.name, err)
		}
	}
	stats.Psms, stats.Peptides, stats.Proteins = nPsms, nPeptides, nProteins
	return stats, nil
}

// psmReport renders one row per consensus PSM with a raw first-hit score
// column for every engine seen in the run.
func (a *App) psmReport(progress ports.ProgressHandler) (string, int, error) {
	keys, err := a.Store.SpectrumKeys()
	if err != nil {
		return "", 0, fmt.Errorf("list spectrum matches: %w", err)
	}
	progress.SetTitle("Writing PSM report")
	progress.SetMax(len(keys))

	var matches []*ports.SpectrumMatch
	var params []*ports.MatchParameter
	advSeen := make(map[ports.Advocate]bool)
	for _, key := range keys {
		if progress.Canceled() {
			return "", 0, nil
		}
		progress.Step()
		match, err := a.Store.SpectrumMatch(key)
		if err != nil {
			return "", 0, fmt.Errorf("spectrum match %s: %w", key, err)
		}
		if match == nil || match.Best == nil {
			continue
		}
		param, err := a.Store.Parameter(ports.SpectrumKind, key)
		if err != nil {
			return "", 0, fmt.Errorf("spectrum parameter %s: %w", key, err)
		}
		if param == nil {
			continue
		}
		for _, adv := range match.Advocates() {
			advSeen[adv] = true
		}
		matches = append(matches, match)
		params = append(params, param)
	}
	advocates := make([]ports.Advocate, 0, len(advSeen))
	for adv := range advSeen {
		advocates = append(advocates, adv)
	}
	sort.Slice(advocates, func(i, j int) bool { return advocates[i] < advocates[j] })

	var b strings.Builder
	b.WriteString("file\ttitle\tsequence\tmods\tcharge")
	for _, adv := range advocates {
		b.WriteString("\t" + adv.String())
	}
	b.WriteString("\tscore\tpep\tconfidence\tvalidated\n")
	for i, match := range matches {
		param := params[i]
		best := match.Best
		b.WriteString(ports.SpectrumFile(match.Key))
		b.WriteString("\t" + ports.SpectrumTitle(match.Key))
		b.WriteString("\t" + best.Sequence)
		b.WriteString("\t" + formatMods(best.Mods))
		b.WriteString("\t" + strconv.Itoa(best.Charge))
		for _, adv := range advocates {
			b.WriteString("\t")
			if hit := match.FirstHit(adv); hit != nil {
				b.WriteString(reportFloat(hit.Score))
			}
		}
		b.WriteString("\t" + reportFloat(param.Score))
		b.WriteString("\t" + reportFloat(param.Probability))
		b.WriteString("\t" + reportFloat(param.Confidence()))
		b.WriteString("\t" + strconv.FormatBool(param.Validated))
		b.WriteString("\n")
	}
	return b.String(), len(matches), nil
}

// peptideReport renders one row per peptide with its localization summary.
func (a *App) peptideReport(progress ports.ProgressHandler) (string, int, error) {
	keys, err := a.Store.PeptideKeys()
	if err != nil {
		return "", 0, fmt.Errorf("list peptide matches: %w", err)
	}
	progress.SetTitle("Writing peptide report")
	progress.SetMax(len(keys))

	var b strings.Builder
	b.WriteString("sequence\tmods\tn_spectra\taccessions\tclass\tscore\tpep\tconfidence\tvalidated\tptm_sites\tptm_confidence\n")
	n := 0
	for _, key := range keys {
		if progress.Canceled() {
			return "", 0, nil
		}
		progress.Step()
		peptide, err := a.Store.PeptideMatch(key)
		if err != nil {
			return "", 0, fmt.Errorf("peptide match %s: %w", key, err)
		}
		param, err := a.Store.Parameter(ports.PeptideKind, key)
		if err != nil {
			return "", 0, fmt.Errorf("peptide parameter %s: %w", key, err)
		}
		if peptide == nil || param == nil {
			continue
		}
		sites, tiers := formatPtmSummary(peptide.Scores)
		b.WriteString(peptide.Sequence)
		b.WriteString("\t" + formatMods(peptide.Mods))
		b.WriteString("\t" + strconv.Itoa(len(peptide.SpectrumKeys)))
		b.WriteString("\t" + strings.Join(peptide.Accessions, ","))
		b.WriteString("\t" + param.GroupClass.String())
		b.WriteString("\t" + reportFloat(param.Score))
		b.WriteString("\t" + reportFloat(param.Probability))
		b.WriteString("\t" + reportFloat(param.Confidence()))
		b.WriteString("\t" + strconv.FormatBool(param.Validated))
		b.WriteString("\t" + sites)
		b.WriteString("\t" + tiers)
		b.WriteString("\n")
		n++
	}
	return b.String(), n, nil
}

// proteinReport renders one row per protein group in canonical order.
func (a *App) proteinReport(progress ports.ProgressHandler) (string, int, error) {
	metrics, err := a.Store.LoadMetrics()
	if err != nil {
		return "", 0, fmt.Errorf("load metrics: %w", err)
	}
	var keys []string
	if metrics != nil {
		keys = metrics.ProteinKeys
	}
	if len(keys) == 0 {
		if keys, err = a.Store.ProteinKeys(); err != nil {
			return "", 0, fmt.Errorf("list protein matches: %w", err)
		}
	}
	progress.SetTitle("Writing protein report")
	progress.SetMax(len(keys))

	var b strings.Builder
	b.WriteString("group\tmain_accession\tdescription\tclass\tn_peptides\tn_spectra\tmw\tpep\tconfidence\tvalidated\n")
	n := 0
	for _, key := range keys {
		if progress.Canceled() {
			return "", 0, nil
		}
		progress.Step()
		group, err := a.Store.ProteinMatch(key)
		if err != nil {
			return "", 0, fmt.Errorf("protein match %s: %w", key, err)
		}
		param, err := a.Store.Parameter(ports.ProteinKind, key)
		if err != nil {
			return "", 0, fmt.Errorf("protein parameter %s: %w", key, err)
		}
		if group == nil || param == nil {
			continue
		}
		nSpectra, err := groupSpectrumCount(a.Store, group)
		if err != nil {
			return "", 0, err
		}

		description, mw := "", ""
		if a.Sequences != nil {
			if prot, err := a.Sequences.Protein(group.MainAccession); err == nil && prot != nil {
				description = prot.Description
				mw = reportFloat(prot.MW)
			}
		}
		b.WriteString(group.Key)
		b.WriteString("\t" + group.MainAccession)
		b.WriteString("\t" + description)
		b.WriteString("\t" + param.GroupClass.String())
		b.WriteString("\t" + strconv.Itoa(len(group.PeptideKeys)))
		b.WriteString("\t" + strconv.Itoa(nSpectra))
		b.WriteString("\t" + mw)
		b.WriteString("\t" + reportFloat(param.Probability))
		b.WriteString("\t" + reportFloat(param.Confidence()))
		b.WriteString("\t" + strconv.FormatBool(param.Validated))
		b.WriteString("\n")
		n++
	}
	return b.String(), n, nil
}

// formatPtmSummary renders a match's localization results as two columns:
// main sites per mod ("Phospho:3,5;Oxidation:7") and the tier per mod
// ("Phospho:Confident;Oxidation:Doubtful").
func formatPtmSummary(scores *ports.PtmScores) (sites, tiers string) {
	if scores == nil {
		return "", ""
	}
	var siteParts, tierParts []string
	for _, mod := range scores.Mods() {
		scoring := scores.Scoring(mod)
		siteParts = append(siteParts, mod+":"+formatSites(scoring.MainSites))
		tierParts = append(tierParts, mod+":"+scoring.Confidence.String())
	}
	return strings.Join(siteParts, ";"), strings.Join(tierParts, ";")
}

// formatMods renders modifications in the name@site syntax of result files.
func formatMods(mods []ports.Modification) string {
	parts := make([]string, len(mods))
	for i, m := range mods {
		parts[i] = fmt.Sprintf("%s@%d", m.Name, m.Site)
	}
	return strings.Join(parts, ";")
}

// formatSites joins site positions with commas.
func formatSites(sites []int) string {
	parts := make([]string, len(sites))
	for i, s := range sites {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// reportFloat renders a float without trailing zeros.
func reportFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
