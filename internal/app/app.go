// Package app wires together all adapters and domain logic. It owns the
// project lifecycle (init, import, validate, report, training) and the
// statistical validation pipeline run over the identification store.
package app

import (
	"fmt"
	"path/filepath"

	"github.com/corey/pepvalid/internal/adapters/bbolt"
	"github.com/corey/pepvalid/internal/adapters/fasta"
	"github.com/corey/pepvalid/internal/adapters/mgf"
	"github.com/corey/pepvalid/internal/ports"
)

// App is the top-level container wiring the store, the providers, and the
// project settings together.
type App struct {
	ProjectRoot string
	Paths       *Paths

	Store  *bbolt.Store
	Params *ports.Parameters
	Info   *ports.ProjectInfo

	// Sequences and Spectra stay nil until a command loads them; the
	// pipeline degrades gracefully without spectra (no site localization
	// evidence) but the resolver needs sequences for descriptions and
	// molecular weights.
	Sequences *fasta.Provider
	Spectra   *mgf.Provider
}

// Config holds initialization parameters for the App.
type Config struct {
	ProjectRoot string
	DBPath      string // path to bbolt file (default: .pepvalid/pepvalid.db)
}

// New creates an App with the store open and project state loaded. Does not
// load providers; see LoadSequences and LoadSpectra.
func New(cfg Config) (*App, error) {
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	paths := NewPaths(cfg.ProjectRoot)
	if cfg.DBPath == "" {
		cfg.DBPath = paths.DB
	}

	store, err := bbolt.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	params, err := store.LoadParameters()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load parameters: %w", err)
	}
	if params == nil {
		params = ports.DefaultParameters()
	}

	info, err := store.LoadProjectInfo()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load project info: %w", err)
	}
	if info == nil {
		info = &ports.ProjectInfo{Name: filepath.Base(cfg.ProjectRoot)}
	}

	return &App{
		ProjectRoot: cfg.ProjectRoot,
		Paths:       paths,
		Store:       store,
		Params:      params,
		Info:        info,
	}, nil
}

// Close flushes and releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// LoadSequences loads the FASTA database and remembers its path in the
// project info. An empty path falls back to the recorded one.
func (a *App) LoadSequences(path string) error {
	if path == "" {
		path = a.Info.FastaPath
	}
	if path == "" {
		return fmt.Errorf("no sequence database: import with --fasta first")
	}
	p, err := fasta.Load(path, a.Params)
	if err != nil {
		return fmt.Errorf("load sequence database: %w", err)
	}
	a.Sequences = p
	a.Info.FastaPath = path
	return nil
}

// LoadSpectra loads every MGF file under dir and remembers the directory in
// the project info. An empty dir falls back to the recorded one; having no
// recorded directory either is not an error, spectra are optional.
func (a *App) LoadSpectra(dir string) error {
	if dir == "" {
		dir = a.Info.SpectrumDir
	}
	if dir == "" {
		return nil
	}
	p, err := mgf.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("load spectra: %w", err)
	}
	a.Spectra = p
	a.Info.SpectrumDir = dir
	a.Info.NSpectra = p.NSpectra()
	return nil
}

// SaveState persists the parameters and project info.
func (a *App) SaveState() error {
	if err := a.Store.SaveParameters(a.Params); err != nil {
		return fmt.Errorf("save parameters: %w", err)
	}
	if err := a.Store.SaveProjectInfo(a.Info); err != nil {
		return fmt.Errorf("save project info: %w", err)
	}
	return a.Store.Flush()
}

// NewPipeline builds a validation pipeline over the App's store and
// providers. The spectrum provider may be nil; localization then runs on
// rank competition alone.
func (a *App) NewPipeline(progress ports.ProgressHandler) *Pipeline {
	var sequences ports.SequenceProvider
	if a.Sequences != nil {
		sequences = a.Sequences
	}
	var spectra ports.SpectrumProvider
	if a.Spectra != nil {
		spectra = a.Spectra
	}
	return NewPipeline(a.Store, sequences, spectra, a.Params, progress)
}
