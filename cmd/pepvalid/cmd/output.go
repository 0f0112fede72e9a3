package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/corey/pepvalid/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// formatStats renders the persisted project state for terminal display.
// Everything comes from the store; nothing is recomputed.
func formatStats(info *ports.ProjectInfo, params *ports.Parameters, metrics *ports.Metrics, maps *ports.ScoreMapsState, color bool) string {
	bold, reset, cyan, green, gray := colorBold, colorReset, colorCyan, colorGreen, colorGray
	if !color {
		bold, reset, cyan, green, gray = "", "", "", "", ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s▸ %s%s\n", bold, info.Name, reset))
	if info.CreatedAt != 0 {
		sb.WriteString(fmt.Sprintf("  Created:       %s\n", time.Unix(info.CreatedAt, 0).Format("2006-01-02 15:04")))
	}
	if info.FastaPath != "" {
		sb.WriteString(fmt.Sprintf("  Database:      %s\n", info.FastaPath))
	}
	if info.SpectrumDir != "" {
		sb.WriteString(fmt.Sprintf("  Spectra:       %d (%s)\n", info.NSpectra, info.SpectrumDir))
	}
	sb.WriteString(fmt.Sprintf("  Result files:  %d\n", len(info.ResultFiles)))
	if !info.RunFinished {
		sb.WriteString(fmt.Sprintf("  %sNot validated yet — run: pepvalid validate%s\n", gray, reset))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\n%s▸ validation%s at %s%% FDR\n", bold, reset, trimFloat(params.FDR)))
	if maps != nil {
		for _, key := range sortedMapKeys(maps.Psm) {
			sb.WriteString(formatFDRLine("PSMs "+key, maps.Psm[key].Results, cyan, green, reset))
		}
		for _, key := range sortedMapKeys(maps.Peptide) {
			sb.WriteString(formatFDRLine("Peptides "+key, maps.Peptide[key].Results, cyan, green, reset))
		}
		if maps.Protein != nil {
			sb.WriteString(formatFDRLine("Proteins", maps.Protein.Results, cyan, green, reset))
		}
	}

	if metrics != nil {
		sb.WriteString(fmt.Sprintf("\n%s▸ dataset%s\n", bold, reset))
		sb.WriteString(fmt.Sprintf("  Validated proteins:  %d\n", metrics.NValidatedProteins))
		sb.WriteString(fmt.Sprintf("  Max peptides:        %d\n", metrics.MaxNPeptides))
		sb.WriteString(fmt.Sprintf("  Max spectra:         %d\n", metrics.MaxNSpectra))
		sb.WriteString(fmt.Sprintf("  Max MW:              %.1f\n", metrics.MaxMW))
		sb.WriteString(fmt.Sprintf("  Spectrum counting:   %s\n", trimFloat(metrics.MaxSpectrumCounting)))
		if len(metrics.FoundModifications) > 0 {
			sb.WriteString(fmt.Sprintf("  Modifications:       %s\n", strings.Join(metrics.FoundModifications, ", ")))
		}
	}
	return sb.String()
}

// formatRunSummary renders the thresholding outcome of a finished run.
func formatRunSummary(psms, peptides map[string]*ports.FDRResults, proteins *ports.FDRResults, fdr float64, color bool) string {
	bold, reset, cyan, green := colorBold, colorReset, colorCyan, colorGreen
	if !color {
		bold, reset, cyan, green = "", "", "", ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s▸ validated%s at %s%% FDR\n", bold, reset, trimFloat(fdr)))
	for _, key := range sortedResultKeys(psms) {
		sb.WriteString(formatFDRLine("PSMs "+key, psms[key], cyan, green, reset))
	}
	for _, key := range sortedResultKeys(peptides) {
		sb.WriteString(formatFDRLine("Peptides "+key, peptides[key], cyan, green, reset))
	}
	sb.WriteString(formatFDRLine("Proteins", proteins, cyan, green, reset))
	return sb.String()
}

// formatFDRLine renders one thresholding outcome as an aligned line. Keys
// pooled away by the grouping carry no results and print nothing.
func formatFDRLine(label string, r *ports.FDRResults, cyan, green, reset string) string {
	if r == nil {
		return ""
	}
	if r.NoValidated {
		return fmt.Sprintf("  %-22s %snone validated%s\n", label+":", cyan, reset)
	}
	return fmt.Sprintf("  %-22s %s%d validated%s  score ≤ %.4g  confidence %.1f%%\n",
		label+":", green, r.NValidated, reset, r.ScoreLimit, r.ConfidenceLimit)
}

func sortedMapKeys(m map[string]*ports.TargetDecoyState) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedResultKeys(m map[string]*ports.FDRResults) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// trimFloat prints a float without trailing zeros (1.0 as "1").
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
