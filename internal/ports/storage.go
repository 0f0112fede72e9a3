// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

// IdentificationStore persists matches, their statistical annotations, and the
// project-level blobs (parameters, metrics, score-map state, project info).
//
// Matches are addressed by opaque string keys. Mutating a previously stored
// match requires an explicit MarkChanged; nothing reaches disk before Flush.
// A crash between flushes must not corrupt previously committed data.
type IdentificationStore interface {
	// SpectrumKeys lists every stored spectrum match key, sorted.
	SpectrumKeys() ([]string, error)

	// PeptideKeys lists every stored peptide match key, sorted.
	PeptideKeys() ([]string, error)

	// ProteinKeys lists every stored protein match key, sorted.
	ProteinKeys() ([]string, error)

	// SpectrumMatch retrieves one spectrum match.
	// Returns nil, nil if the key is unknown.
	SpectrumMatch(key string) (*SpectrumMatch, error)

	// PeptideMatch retrieves one peptide match.
	// Returns nil, nil if the key is unknown.
	PeptideMatch(key string) (*PeptideMatch, error)

	// ProteinMatch retrieves one protein match.
	// Returns nil, nil if the key is unknown.
	ProteinMatch(key string) (*ProteinMatch, error)

	// AddSpectrumMatch inserts a new spectrum match (dirty until Flush).
	AddSpectrumMatch(m *SpectrumMatch) error

	// AddPeptideMatch inserts a new peptide match (dirty until Flush).
	AddPeptideMatch(m *PeptideMatch) error

	// AddProteinMatch inserts a new protein match (dirty until Flush).
	AddProteinMatch(m *ProteinMatch) error

	// RemoveProteinMatch deletes a protein group and its annotation.
	// Idempotent: removing an unknown key is not an error.
	RemoveProteinMatch(key string) error

	// Parameter retrieves the statistical annotation of a match.
	// Returns nil, nil if none was attached yet.
	Parameter(kind MatchKind, key string) (*MatchParameter, error)

	// SetParameter attaches or replaces a match annotation (dirty until
	// Flush).
	SetParameter(kind MatchKind, key string, p *MatchParameter) error

	// MarkChanged flags an in-memory match as modified so the next Flush
	// rewrites it.
	MarkChanged(kind MatchKind, key string)

	// SaveParameters persists the project processing settings.
	SaveParameters(p *Parameters) error

	// LoadParameters retrieves the project processing settings.
	// Returns nil, nil for a fresh project.
	LoadParameters() (*Parameters, error)

	// SaveMetrics persists the dataset metrics collected by a run.
	SaveMetrics(m *Metrics) error

	// LoadMetrics retrieves the dataset metrics.
	// Returns nil, nil if no run has stored any.
	LoadMetrics() (*Metrics, error)

	// SaveScoreMaps persists the serialized target/decoy map state.
	SaveScoreMaps(s *ScoreMapsState) error

	// LoadScoreMaps retrieves the serialized target/decoy map state.
	// Returns nil, nil if no validation run has stored any.
	LoadScoreMaps() (*ScoreMapsState, error)

	// SaveProjectInfo persists the project descriptor.
	SaveProjectInfo(info *ProjectInfo) error

	// LoadProjectInfo retrieves the project descriptor.
	// Returns nil, nil for an uninitialized database.
	LoadProjectInfo() (*ProjectInfo, error)

	// Flush writes every dirty record in one transaction.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// ScoreBin is one retained score histogram bin with its estimated posterior
// error probability.
type ScoreBin struct {
	Score   float64 `json:"score"`
	Targets int     `json:"targets"`
	Decoys  int     `json:"decoys"`
	PEP     float64 `json:"pep"`
}

// FDRResults captures the outcome of thresholding one target/decoy map.
type FDRResults struct {
	FDRLimit        float64 `json:"fdr_limit"` // requested, percent
	ScoreLimit      float64 `json:"score_limit"`
	ConfidenceLimit float64 `json:"confidence_limit"` // percent at the limit
	NValidated      int     `json:"n_validated"`
	NFalsePositives float64 `json:"n_false_positives"`
	NoValidated     bool    `json:"no_validated"`
}

// TargetDecoyState is the serialized form of one target/decoy map.
type TargetDecoyState struct {
	Bins      []ScoreBin  `json:"bins"`
	Estimated bool        `json:"estimated"`
	Results   *FDRResults `json:"results,omitempty"`
}

// ScoreMapsState bundles the serialized state of every score map of a run,
// persisted after validation so reporting commands work without recomputing.
type ScoreMapsState struct {
	Input           map[Advocate]*TargetDecoyState `json:"input"`
	Psm             map[string]*TargetDecoyState   `json:"psm"`
	PsmGrouping     map[string]string              `json:"psm_grouping,omitempty"`
	Peptide         map[string]*TargetDecoyState   `json:"peptide"`
	PeptideGrouping map[string]string              `json:"peptide_grouping,omitempty"`
	Protein         *TargetDecoyState              `json:"protein"`
}

// Metrics are dataset-level figures collected during processing, persisted
// for the reporting commands.
type Metrics struct {
	// ProteinKeys is the canonical protein ordering fixed by the resolver:
	// score ascending, peptide count and spectrum count descending, key
	// ascending.
	ProteinKeys []string `json:"protein_keys,omitempty"`

	MaxNPeptides int     `json:"max_n_peptides"`
	MaxNSpectra  int     `json:"max_n_spectra"`
	MaxMW        float64 `json:"max_mw"`

	NValidatedProteins  int     `json:"n_validated_proteins"`
	MaxSpectrumCounting float64 `json:"max_spectrum_counting"`

	// FoundModifications lists every modification family observed on
	// scored peptides.
	FoundModifications []string `json:"found_modifications,omitempty"`
}

// AddFoundModification records an observed modification family once.
func (m *Metrics) AddFoundModification(family string) {
	if family == "" {
		return
	}
	for _, f := range m.FoundModifications {
		if f == family {
			return
		}
	}
	m.FoundModifications = append(m.FoundModifications, family)
}

// ProjectInfo describes the project a database belongs to.
type ProjectInfo struct {
	Name        string   `json:"name"`
	CreatedAt   int64    `json:"created_at"` // unix seconds
	FastaPath   string   `json:"fasta_path,omitempty"`
	SpectrumDir string   `json:"spectrum_dir,omitempty"`
	ResultFiles []string `json:"result_files,omitempty"`
	NSpectra    int      `json:"n_spectra"`
	RunFinished bool     `json:"run_finished"`
}
