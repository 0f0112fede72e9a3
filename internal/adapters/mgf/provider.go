// Package mgf loads Mascot Generic Format peak lists and serves them through
// the ports.SpectrumProvider interface.
//
// An MGF file is a sequence of BEGIN IONS / END IONS blocks. Inside a block,
// KEY=VALUE lines carry spectrum headers (TITLE, PEPMASS, CHARGE) and bare
// numeric lines carry one peak each ("m/z intensity"). Text outside blocks
// is ignored. Spectra are keyed by file base name plus title, matching the
// spectrum match keys of the identification store.
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/corey/pepvalid/internal/ports"
)

// Provider implements ports.SpectrumProvider over parsed MGF files.
type Provider struct {
	spectra map[string]*ports.Spectrum
	files   []string
	titles  map[string][]string
}

// NewProvider returns an empty provider; add files with LoadFile.
func NewProvider() *Provider {
	return &Provider{
		spectra: make(map[string]*ports.Spectrum),
		titles:  make(map[string][]string),
	}
}

// LoadDir loads every .mgf file of a directory, sorted by name.
func LoadDir(dir string) (*Provider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read spectrum dir: %w", err)
	}
	p := NewProvider()
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".mgf") {
			continue
		}
		if err := p.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// LoadFile parses one MGF file into the provider. The spectrum file key is
// the base name of the path.
func (p *Provider) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mgf: %w", err)
	}
	defer f.Close()

	file := filepath.Base(path)
	if err := p.parse(f, file); err != nil {
		return fmt.Errorf("parse mgf %s: %w", file, err)
	}
	return nil
}

func (p *Provider) parse(r io.Reader, file string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var current *ports.Spectrum
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "BEGIN IONS":
			if current != nil {
				return fmt.Errorf("line %d: BEGIN IONS inside an open block", lineNo)
			}
			current = &ports.Spectrum{File: file}

		case line == "END IONS":
			if current == nil {
				return fmt.Errorf("line %d: END IONS without BEGIN IONS", lineNo)
			}
			if current.Title == "" {
				return fmt.Errorf("line %d: spectrum without TITLE", lineNo)
			}
			key := current.Key()
			if _, ok := p.spectra[key]; ok {
				return fmt.Errorf("line %d: duplicate title %q", lineNo, current.Title)
			}
			if len(p.titles[file]) == 0 {
				p.files = append(p.files, file)
				sort.Strings(p.files)
			}
			p.spectra[key] = current
			p.titles[file] = append(p.titles[file], current.Title)
			current = nil

		case current == nil:
			// Header junk between blocks is legal; skip it.

		case strings.Contains(line, "="):
			key, value, _ := strings.Cut(line, "=")
			if err := applyHeader(current, key, value); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}

		default:
			peak, err := parsePeak(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.Peaks = append(current.Peaks, peak)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if current != nil {
		return fmt.Errorf("unterminated BEGIN IONS block")
	}
	return nil
}

// applyHeader sets one KEY=VALUE spectrum header. Unknown keys are ignored.
func applyHeader(s *ports.Spectrum, key, value string) error {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "TITLE":
		s.Title = strings.TrimSpace(value)
	case "PEPMASS":
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("PEPMASS %q: %w", fields[0], err)
		}
		s.Precursor.Mz = mz
	case "CHARGE":
		charges, err := parseCharges(value)
		if err != nil {
			return err
		}
		s.Precursor.Charges = charges
	}
	return nil
}

// parseCharges reads a CHARGE header. Accepted spellings: "2+", "3",
// "2+ and 3+", "2+,3+". A trailing '-' marks a negative mode charge.
func parseCharges(value string) ([]int, error) {
	norm := strings.ReplaceAll(strings.ToLower(value), ",", " ")
	var charges []int
	for _, tok := range strings.Fields(norm) {
		if tok == "and" {
			continue
		}
		sign := 1
		if strings.HasSuffix(tok, "+") {
			tok = strings.TrimSuffix(tok, "+")
		} else if strings.HasSuffix(tok, "-") {
			tok = strings.TrimSuffix(tok, "-")
			sign = -1
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("CHARGE token %q", tok)
		}
		charges = append(charges, sign*n)
	}
	return charges, nil
}

// parsePeak reads one "m/z intensity" line. Extra columns (some exporters
// append the fragment charge) are ignored.
func parsePeak(line string) (ports.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ports.Peak{}, fmt.Errorf("malformed peak line %q", line)
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return ports.Peak{}, fmt.Errorf("peak m/z %q: %w", fields[0], err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ports.Peak{}, fmt.Errorf("peak intensity %q: %w", fields[1], err)
	}
	return ports.Peak{Mz: mz, Intensity: intensity}, nil
}

// Spectrum retrieves one spectrum by file and title. Returns nil, nil if
// unknown.
func (p *Provider) Spectrum(file, title string) (*ports.Spectrum, error) {
	return p.spectra[ports.SpectrumKey(file, title)], nil
}

// Files lists the loaded spectrum files, sorted.
func (p *Provider) Files() []string {
	return p.files
}

// Titles lists the spectrum titles of one file, in file order.
func (p *Provider) Titles(file string) []string {
	return p.titles[file]
}

// NSpectra counts every loaded spectrum.
func (p *Provider) NSpectra() int {
	return len(p.spectra)
}
