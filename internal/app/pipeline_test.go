package app

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/corey/pepvalid/internal/adapters/bbolt"
	"github.com/corey/pepvalid/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a ProgressHandler capturing stage titles and report lines. It
// can cancel itself when a named stage starts.
type recorder struct {
	titles   []string
	reports  []string
	canceled bool
	done     bool
	cancelOn string
}

func (r *recorder) SetTitle(title string) {
	r.titles = append(r.titles, title)
	if r.cancelOn != "" && title == r.cancelOn {
		r.canceled = true
	}
}
func (r *recorder) SetMax(int)         {}
func (r *recorder) Step()              {}
func (r *recorder) Report(line string) { r.reports = append(r.reports, line) }
func (r *recorder) Cancel()            { r.canceled = true }
func (r *recorder) Canceled() bool     { return r.canceled }
func (r *recorder) Done()              { r.done = true }

// newTestStore creates a temporary identification store.
func newTestStore(t *testing.T) *bbolt.Store {
	t.Helper()
	store, err := bbolt.NewStore(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// addHit records one engine's rank-1 candidate for a spectrum of run1.mgf,
// creating the match on first use.
func addHit(t *testing.T, store *bbolt.Store, title string, adv ports.Advocate, seq string, score float64, accessions ...string) {
	t.Helper()
	key := ports.SpectrumKey("run1.mgf", title)
	match, err := store.SpectrumMatch(key)
	require.NoError(t, err)
	if match == nil {
		match = ports.NewSpectrumMatch(key)
		require.NoError(t, store.AddSpectrumMatch(match))
	}
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate:    adv,
		Rank:        1,
		Sequence:    seq,
		Charge:      2,
		Score:       score,
		Accessions:  accessions,
		Probability: 1,
	}))
	match.SortAssumptions()
	store.MarkChanged(ports.SpectrumKind, key)
}

// uniqueSequence derives a distinct valid peptide sequence from an index.
func uniqueSequence(i int) string {
	const aa = "ACDEFGHIKLMNPQRSTVWY"
	return "PE" + string(aa[(i/400)%20]) + string(aa[(i/20)%20]) + string(aa[i%20]) + "TIDEK"
}

// binScores are the raw engine scores of the reference dataset's target
// spectra, twelve observations per bin.
var binScores = []float64{0.001, 0.002, 0.003, 0.004, 0.005, 0.006, 0.007, 0.008, 0.009, 0.010}

// seedValidationDataset fills the store with a two-engine dataset whose
// statistics are simple to follow by hand.
//
// 120 target spectra score twelve per bin on both engines, each backed by
// its own protein. 30 decoy spectra sit at 0.5 on both engines. 15 further
// decoys at 0.0003 are known to OMSSA alone; they poison the front of its
// score distribution, so every OMSSA probability is high and the engine is
// flagged as unreliable. One disputed spectrum rounds the set out: the
// X!Tandem candidate has the worse raw score but by far the better
// calibrated probability.
func seedValidationDataset(t *testing.T, store *bbolt.Store) {
	t.Helper()
	for i := 0; i < 120; i++ {
		title := fmt.Sprintf("t%03d", i)
		seq := uniqueSequence(i)
		acc := fmt.Sprintf("T%03d", i)
		score := binScores[i/12]
		addHit(t, store, title, ports.XTandem, seq, score, acc)
		addHit(t, store, title, ports.OMSSA, seq, score, acc)
	}
	for j := 0; j < 30; j++ {
		title := fmt.Sprintf("d%02d", j)
		seq := uniqueSequence(200 + j)
		acc := fmt.Sprintf("REV_D%02d", j)
		addHit(t, store, title, ports.XTandem, seq, 0.5, acc)
		addHit(t, store, title, ports.OMSSA, seq, 0.5, acc)
	}
	for k := 0; k < 15; k++ {
		title := fmt.Sprintf("x%02d", k)
		seq := uniqueSequence(300 + k)
		acc := fmt.Sprintf("REV_X%02d", k)
		addHit(t, store, title, ports.OMSSA, seq, 0.0003, acc)
	}
	addHit(t, store, "sp", ports.XTandem, uniqueSequence(120), binScores[8], "T900")
	addHit(t, store, "sp", ports.OMSSA, uniqueSequence(121), 0.0005, "T901")
	require.NoError(t, store.Flush())
}

// runFullPipeline seeds the reference dataset and runs one validation pass
// at the default 1% FDR.
func runFullPipeline(t *testing.T) (*bbolt.Store, *Pipeline, *recorder) {
	t.Helper()
	store := newTestStore(t)
	seedValidationDataset(t, store)
	rec := &recorder{}
	pipe := NewPipeline(store, nil, nil, ports.DefaultParameters(), rec)
	require.NoError(t, pipe.Run())
	require.False(t, rec.canceled)
	return store, pipe, rec
}

// =============================================================================
// Full pass
// =============================================================================

func TestRun_ValidatesAtTheConfiguredFDR(t *testing.T) {
	_, pipe, _ := runFullPipeline(t)

	// All 121 targets collapse to a consensus probability of zero, the 45
	// decoys to 0.9375 and 1, so the 1% threshold validates exactly the
	// targets on every level.
	psm := pipe.PsmResults()
	require.Contains(t, psm, "2@run1.mgf")
	require.Len(t, psm, 1)
	r := psm["2@run1.mgf"]
	assert.False(t, r.NoValidated)
	assert.Equal(t, 121, r.NValidated)
	assert.Zero(t, r.NFalsePositives)
	assert.InDelta(t, 0, r.ScoreLimit, 1e-12)
	assert.InDelta(t, 100, r.ConfidenceLimit, 1e-9)

	peptides := pipe.PeptideResults()
	require.Contains(t, peptides, "")
	require.Len(t, peptides, 1)
	assert.Equal(t, 121, peptides[""].NValidated)

	proteins := pipe.ProteinResults()
	require.NotNil(t, proteins)
	assert.Equal(t, 121, proteins.NValidated)
	assert.InDelta(t, 100, proteins.ConfidenceLimit, 1e-9)
}

func TestRun_FlagsMatchesAgainstTheThresholds(t *testing.T) {
	store, _, _ := runFullPipeline(t)

	target, err := store.Parameter(ports.SpectrumKind, "run1.mgf#t000")
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.True(t, target.Validated)
	assert.InDelta(t, 0, target.Probability, 1e-12)
	assert.Equal(t, "2@run1.mgf", target.SpecificKey)

	decoy, err := store.Parameter(ports.SpectrumKind, "run1.mgf#d00")
	require.NoError(t, err)
	require.NotNil(t, decoy)
	assert.False(t, decoy.Validated)
	assert.InDelta(t, 1, decoy.Probability, 1e-12)

	// The OMSSA-only decoys carry the poisoned calibration up the chain.
	poisoned, err := store.Parameter(ports.SpectrumKind, "run1.mgf#x00")
	require.NoError(t, err)
	require.NotNil(t, poisoned)
	assert.False(t, poisoned.Validated)

	pepParam, err := store.Parameter(ports.PeptideKind, uniqueSequence(0))
	require.NoError(t, err)
	require.NotNil(t, pepParam)
	assert.True(t, pepParam.Validated)
	assert.InDelta(t, 0, pepParam.FractionPEP["run1.mgf"], 1e-12)

	protParam, err := store.Parameter(ports.ProteinKind, "T000")
	require.NoError(t, err)
	require.NotNil(t, protParam)
	assert.True(t, protParam.Validated)
	assert.Equal(t, ports.Single, protParam.GroupClass)

	decoyProt, err := store.Parameter(ports.ProteinKind, "REV_D00")
	require.NoError(t, err)
	require.NotNil(t, decoyProt)
	assert.False(t, decoyProt.Validated)
}

func TestRun_ConsensusPrefersCalibratedProbabilityOverRawScore(t *testing.T) {
	store, _, _ := runFullPipeline(t)

	// OMSSA's candidate scored 0.0005 raw against X!Tandem's 0.009, but its
	// calibration is ruined; the election goes to the X!Tandem peptide.
	match, err := store.SpectrumMatch("run1.mgf#sp")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.NotNil(t, match.Best)
	assert.Equal(t, uniqueSequence(120), match.Best.Sequence)

	// The losing candidate never becomes a peptide or a protein group.
	loser, err := store.PeptideMatch(uniqueSequence(121))
	require.NoError(t, err)
	assert.Nil(t, loser)
	group, err := store.ProteinMatch("T901")
	require.NoError(t, err)
	assert.Nil(t, group)

	winner, err := store.ProteinMatch("T900")
	require.NoError(t, err)
	require.NotNil(t, winner)
	param, err := store.Parameter(ports.ProteinKind, "T900")
	require.NoError(t, err)
	require.NotNil(t, param)
	assert.True(t, param.Validated)
}

func TestRun_ReportsUnreliableEngineAndResolutionSummary(t *testing.T) {
	_, _, rec := runFullPipeline(t)

	assert.Equal(t, []string{
		"0 conflicts resolved. 0 protein groups remaining (0 suspicious).",
		"Unreliable score distribution for OMSSA.",
	}, rec.reports)
	assert.True(t, rec.done)
	assert.Contains(t, rec.titles, "Calibrating search engine scores")
	assert.Contains(t, rec.titles, "Selecting consensus matches")
	assert.Contains(t, rec.titles, "Validating matches")
}

func TestRun_FixesCanonicalProteinOrderingAndMetrics(t *testing.T) {
	_, pipe, _ := runFullPipeline(t)

	m := pipe.Metrics()
	assert.Equal(t, 121, m.NValidatedProteins)
	assert.Equal(t, 1, m.MaxNPeptides)
	assert.Equal(t, 1, m.MaxNSpectra)
	assert.InDelta(t, 1, m.MaxSpectrumCounting, 1e-12)
	assert.Zero(t, m.MaxMW)
	assert.Empty(t, m.FoundModifications)

	// Targets (score 0) precede decoys (score 1); ties order by key.
	require.Len(t, m.ProteinKeys, 166)
	assert.Equal(t, "T000", m.ProteinKeys[0])
	assert.Equal(t, "T900", m.ProteinKeys[120])
	assert.Equal(t, "REV_D00", m.ProteinKeys[121])
	assert.Equal(t, "REV_X14", m.ProteinKeys[165])
}

func TestRun_PersistsScoreMapsAndMetrics(t *testing.T) {
	store, _, _ := runFullPipeline(t)

	state, err := store.LoadScoreMaps()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Contains(t, state.Psm, "2@run1.mgf")
	require.NotNil(t, state.Psm["2@run1.mgf"].Results)
	assert.Equal(t, 121, state.Psm["2@run1.mgf"].Results.NValidated)
	require.Contains(t, state.Input, ports.OMSSA)
	assert.True(t, state.Input[ports.OMSSA].Estimated)
	require.NotNil(t, state.Protein)
	require.NotNil(t, state.Protein.Results)
	assert.Equal(t, 121, state.Protein.Results.NValidated)

	metrics, err := store.LoadMetrics()
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.Equal(t, 121, metrics.NValidatedProteins)
}

func TestRun_SecondPassIsIdempotent(t *testing.T) {
	store, _, _ := runFullPipeline(t)

	rec := &recorder{}
	again := NewPipeline(store, nil, nil, ports.DefaultParameters(), rec)
	require.NoError(t, again.Run())
	require.False(t, rec.canceled)

	assert.Equal(t, 121, again.PsmResults()["2@run1.mgf"].NValidated)
	assert.Equal(t, 121, again.PeptideResults()[""].NValidated)
	assert.Equal(t, 121, again.ProteinResults().NValidated)

	// Rebuilding matches over existing ones must not duplicate memberships.
	peptide, err := store.PeptideMatch(uniqueSequence(0))
	require.NoError(t, err)
	require.NotNil(t, peptide)
	assert.Len(t, peptide.SpectrumKeys, 1)
	assert.Len(t, peptide.Accessions, 1)
	group, err := store.ProteinMatch("T000")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Len(t, group.PeptideKeys, 1)
}

func TestRun_LooserFDRNeverRevokesValidation(t *testing.T) {
	store, _, _ := runFullPipeline(t)

	keys, err := store.ProteinKeys()
	require.NoError(t, err)
	validated := make([]string, 0, len(keys))
	for _, key := range keys {
		param, err := store.Parameter(ports.ProteinKind, key)
		require.NoError(t, err)
		if param != nil && param.Validated {
			validated = append(validated, key)
		}
	}
	require.NotEmpty(t, validated)

	loose := ports.DefaultParameters()
	loose.FDR = 5
	again := NewPipeline(store, nil, nil, loose, &recorder{})
	require.NoError(t, again.Run())

	assert.GreaterOrEqual(t, again.ProteinResults().NValidated, len(validated))
	for _, key := range validated {
		param, err := store.Parameter(ports.ProteinKind, key)
		require.NoError(t, err)
		require.NotNil(t, param, key)
		assert.True(t, param.Validated, "match %s lost validation under a looser threshold", key)
	}
}

// =============================================================================
// Cancellation and partial rebuilds
// =============================================================================

func TestRun_CancellationSkipsPersistence(t *testing.T) {
	store := newTestStore(t)
	seedValidationDataset(t, store)
	rec := &recorder{cancelOn: "Selecting consensus matches"}
	pipe := NewPipeline(store, nil, nil, ports.DefaultParameters(), rec)

	require.NoError(t, pipe.Run())

	assert.True(t, rec.canceled)
	assert.False(t, rec.done)
	state, err := store.LoadScoreMaps()
	require.NoError(t, err)
	assert.Nil(t, state)
	metrics, err := store.LoadMetrics()
	require.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestPeptideMapChanged_RebuildsProteinLevel(t *testing.T) {
	store, pipe, _ := runFullPipeline(t)

	require.NoError(t, pipe.PeptideMapChanged())
	require.NoError(t, pipe.FDRValidation())

	proteins := pipe.ProteinResults()
	require.NotNil(t, proteins)
	assert.Equal(t, 121, proteins.NValidated)

	param, err := store.Parameter(ports.ProteinKind, "T900")
	require.NoError(t, err)
	require.NotNil(t, param)
	assert.True(t, param.Validated)
	assert.InDelta(t, 0, param.Probability, 1e-12)
}
