// Package results reads tab-separated search-engine result files.
//
// One candidate per row:
//
//	file  title  advocate  rank  sequence  mods  charge  score  accessions
//
// mods holds name@site pairs joined by ';' (empty for an unmodified
// peptide). accessions is comma-joined and may be empty when the engine
// does not report protein mappings; the importer then resolves accessions
// by scanning the protein sequences for the peptide.
//
// Blank lines, '#' comments and a repeated header row are skipped, so
// concatenated exports parse as one file.
package results

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/corey/pepvalid/internal/ports"
)

const nColumns = 9

// Row is one parsed candidate line.
type Row struct {
	File       string
	Title      string
	Advocate   ports.Advocate
	Rank       int
	Sequence   string
	Mods       []ports.Modification
	Charge     int
	Score      float64
	Accessions []string
}

// SpectrumKey returns the key of the spectrum this row identifies.
func (r *Row) SpectrumKey() string {
	return ports.SpectrumKey(r.File, r.Title)
}

// Assumption converts the row into a peptide assumption for the store.
func (r *Row) Assumption() *ports.PeptideAssumption {
	return &ports.PeptideAssumption{
		Advocate:    r.Advocate,
		Rank:        r.Rank,
		Sequence:    r.Sequence,
		Mods:        r.Mods,
		Charge:      r.Charge,
		Score:       r.Score,
		Accessions:  r.Accessions,
		Probability: 1,
	}
}

// ReadFile parses every candidate row of one result file.
func ReadFile(path string) ([]*Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return rows, nil
}

// Parse reads candidate rows from r until EOF.
func Parse(r io.Reader) ([]*Row, error) {
	var rows []*Row
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		row, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if row != nil {
			rows = append(rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ParseLine parses a single row. Returns nil, nil for blank lines,
// comments and the header row.
func ParseLine(line string) (*Row, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	fields := strings.Split(line, "\t")
	if len(fields) == nColumns-1 {
		// A trailing empty accession column is often dropped entirely.
		fields = append(fields, "")
	}
	if len(fields) != nColumns {
		return nil, fmt.Errorf("want %d tab-separated columns, got %d", nColumns, len(fields))
	}
	if isHeader(fields) {
		return nil, nil
	}

	row := &Row{
		File:     strings.TrimSpace(fields[0]),
		Title:    strings.TrimSpace(fields[1]),
		Sequence: strings.ToUpper(strings.TrimSpace(fields[4])),
	}
	if row.File == "" || row.Title == "" {
		return nil, fmt.Errorf("missing spectrum file or title")
	}
	if row.Sequence == "" {
		return nil, fmt.Errorf("missing peptide sequence")
	}

	advocate, err := ports.ParseAdvocate(strings.TrimSpace(fields[2]))
	if err != nil {
		return nil, err
	}
	row.Advocate = advocate

	row.Rank, err = strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil || row.Rank < 1 {
		return nil, fmt.Errorf("rank %q: want a positive integer", fields[3])
	}

	row.Mods, err = parseMods(fields[5], len(row.Sequence))
	if err != nil {
		return nil, err
	}

	row.Charge, err = strconv.Atoi(strings.TrimSpace(fields[6]))
	if err != nil {
		return nil, fmt.Errorf("charge %q: want an integer", fields[6])
	}

	row.Score, err = strconv.ParseFloat(strings.TrimSpace(fields[7]), 64)
	if err != nil {
		return nil, fmt.Errorf("score %q: want a number", fields[7])
	}

	row.Accessions = splitAccessions(fields[8])
	return row, nil
}

// isHeader recognizes the canonical column-name row.
func isHeader(fields []string) bool {
	return strings.EqualFold(strings.TrimSpace(fields[0]), "file") &&
		strings.EqualFold(strings.TrimSpace(fields[2]), "advocate")
}

// parseMods parses "Phospho@4;Oxidation@7" into modification matches.
func parseMods(field string, seqLen int) ([]ports.Modification, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	var mods []ports.Modification
	for _, part := range strings.Split(field, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		at := strings.LastIndex(part, "@")
		if at <= 0 || at == len(part)-1 {
			return nil, fmt.Errorf("modification %q: want name@site", part)
		}
		site, err := strconv.Atoi(part[at+1:])
		if err != nil || site < 1 || site > seqLen {
			return nil, fmt.Errorf("modification %q: site outside peptide", part)
		}
		mods = append(mods, ports.Modification{Name: part[:at], Site: site})
	}
	return mods, nil
}

// splitAccessions splits a comma-joined accession list, dropping blanks.
func splitAccessions(field string) []string {
	var accessions []string
	for _, acc := range strings.Split(field, ",") {
		acc = strings.TrimSpace(acc)
		if acc != "" {
			accessions = append(accessions, acc)
		}
	}
	return accessions
}
