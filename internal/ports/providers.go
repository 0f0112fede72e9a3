package ports

// Protein is one sequence database entry.
type Protein struct {
	Accession   string
	Description string
	Sequence    string
	Decoy       bool

	// MW is the monoisotopic molecular weight in kDa, computed at load.
	MW float64
}

// SequenceProvider gives read-only access to the protein sequence database.
// Implementations are loaded once and queried concurrently by the pipeline.
type SequenceProvider interface {
	// Protein retrieves one database entry.
	// Returns nil, nil if the accession is unknown; callers treat a
	// missing accession as a reportable condition, not a failure.
	Protein(accession string) (*Protein, error)

	// Accessions lists every accession, sorted.
	Accessions() []string
}

// Peak is one fragment peak of a spectrum.
type Peak struct {
	Mz        float64
	Intensity float64
}

// Precursor describes the precursor ion of a spectrum. Multiple charges
// appear when the instrument could not resolve the charge state.
type Precursor struct {
	Mz      float64
	Charges []int
}

// Spectrum is one recorded MS/MS spectrum.
type Spectrum struct {
	File      string
	Title     string
	Precursor Precursor
	Peaks     []Peak
}

// Key returns the spectrum's composite match key.
func (s *Spectrum) Key() string {
	return SpectrumKey(s.File, s.Title)
}

// SpectrumProvider gives read-only access to the recorded spectra.
type SpectrumProvider interface {
	// Spectrum retrieves one spectrum by file and title.
	// Returns nil, nil if unknown.
	Spectrum(file, title string) (*Spectrum, error)

	// Files lists the loaded spectrum files, sorted.
	Files() []string

	// Titles lists the spectrum titles of one file, in file order.
	Titles(file string) []string
}
