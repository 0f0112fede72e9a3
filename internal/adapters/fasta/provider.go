// Package fasta loads protein sequence databases in FASTA format and serves
// them through the ports.SequenceProvider interface.
//
// Header lines start with '>'. UniProt bar-delimited headers
// ("sp|P04637|P53_HUMAN Cellular tumor antigen p53") yield the middle field
// as accession; any other header uses the first whitespace-delimited token,
// with the remainder as description. Decoy entries are recognized by the
// project's decoy flags on the accession. Molecular weights are computed
// once at load time.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/corey/pepvalid/internal/domain/ptm"
	"github.com/corey/pepvalid/internal/ports"
)

// Provider implements ports.SequenceProvider over a parsed FASTA database.
type Provider struct {
	proteins map[string]*ports.Protein
	order    []string
}

// Load reads a FASTA database from disk.
func Load(path string, params *ports.Parameters) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fasta: %w", err)
	}
	defer f.Close()

	p, err := Parse(f, params)
	if err != nil {
		return nil, fmt.Errorf("parse fasta %s: %w", path, err)
	}
	return p, nil
}

// Parse reads FASTA entries from a reader. Sequence lines are uppercased;
// blank lines are skipped. Duplicate accessions mean a malformed database.
func Parse(r io.Reader, params *ports.Parameters) (*Provider, error) {
	if params == nil {
		params = ports.DefaultParameters()
	}
	p := &Provider{proteins: make(map[string]*ports.Protein)}

	scanner := bufio.NewScanner(r)
	// Some generators emit the whole sequence on one line.
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var current *ports.Protein
	var seq strings.Builder
	flush := func() {
		if current == nil {
			return
		}
		current.Sequence = seq.String()
		current.MW = ptm.SequenceMass(current.Sequence) / 1000
		p.proteins[current.Accession] = current
		current = nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			acc, desc := splitHeader(line[1:])
			if acc == "" {
				return nil, fmt.Errorf("line %d: header without accession", lineNo)
			}
			if _, ok := p.proteins[acc]; ok {
				return nil, fmt.Errorf("line %d: duplicate accession %q", lineNo, acc)
			}
			current = &ports.Protein{
				Accession:   acc,
				Description: desc,
				Decoy:       params.IsDecoy(acc),
			}
			seq.Reset()
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: sequence data before first header", lineNo)
		}
		seq.WriteString(strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	p.order = make([]string, 0, len(p.proteins))
	for acc := range p.proteins {
		p.order = append(p.order, acc)
	}
	sort.Strings(p.order)
	return p, nil
}

// splitHeader splits a header line (without '>') into accession and
// description.
func splitHeader(header string) (accession, description string) {
	header = strings.TrimSpace(header)
	first := header
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		first = header[:i]
		description = strings.TrimSpace(header[i+1:])
	}
	if parts := strings.Split(first, "|"); len(parts) >= 3 && parts[1] != "" {
		return parts[1], description
	}
	return first, description
}

// Protein retrieves one database entry. Returns nil, nil if the accession is
// unknown.
func (p *Provider) Protein(accession string) (*ports.Protein, error) {
	return p.proteins[accession], nil
}

// Accessions lists every accession, sorted.
func (p *Provider) Accessions() []string {
	return p.order
}

// NTargets counts the non-decoy entries.
func (p *Provider) NTargets() int {
	n := 0
	for _, prot := range p.proteins {
		if !prot.Decoy {
			n++
		}
	}
	return n
}
