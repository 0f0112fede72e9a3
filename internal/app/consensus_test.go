package app

import (
	"testing"

	"github.com/corey/pepvalid/internal/adapters/bbolt"
	"github.com/corey/pepvalid/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsensusPipeline(t *testing.T) (*Pipeline, *bbolt.Store) {
	t.Helper()
	store := newTestStore(t)
	return NewPipeline(store, nil, nil, ports.DefaultParameters(), &recorder{}), store
}

// =============================================================================
// Comparator
// =============================================================================

func TestBetter_PrefersLowerCombinedProbability(t *testing.T) {
	a := &candidate{p: 0.1, proteinMax: 1, engines: 1}
	b := &candidate{p: 0.2, proteinMax: 9, engines: 3}
	assert.True(t, better(a, b))
	assert.False(t, better(b, a))
}

func TestBetter_BreaksProbabilityTiesByProteinOccurrence(t *testing.T) {
	a := &candidate{p: 0.5, proteinMax: 4, engines: 1}
	b := &candidate{p: 0.5, proteinMax: 2, engines: 2}
	assert.True(t, better(a, b))
	assert.False(t, better(b, a))
}

func TestBetter_BreaksRemainingTiesByEngineCount(t *testing.T) {
	a := &candidate{p: 0.5, proteinMax: 2, engines: 2}
	b := &candidate{p: 0.5, proteinMax: 2, engines: 1}
	assert.True(t, better(a, b))
	assert.False(t, better(b, a))
}

func TestBetter_FullTieKeepsTheIncumbent(t *testing.T) {
	a := &candidate{p: 0.5, proteinMax: 2, engines: 1}
	b := &candidate{p: 0.5, proteinMax: 2, engines: 1}
	assert.False(t, better(a, b))
	assert.False(t, better(b, a))
}

// =============================================================================
// Election
// =============================================================================

func TestElectBest_EmptyMatchElectsNothing(t *testing.T) {
	pipe, _ := newConsensusPipeline(t)
	assert.Nil(t, pipe.electBest(ports.NewSpectrumMatch("run1.mgf#empty")))
}

func TestElectBest_SingleEngineRunsOnRawScores(t *testing.T) {
	pipe, _ := newConsensusPipeline(t)
	match := ports.NewSpectrumMatch("run1.mgf#s1")
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.XTandem, Rank: 1, Sequence: "AAAK", Charge: 2, Score: 0.01, Probability: 1,
	}))
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.XTandem, Rank: 2, Sequence: "CCCK", Charge: 2, Score: 0.02, Probability: 1,
	}))
	match.SortAssumptions()

	elected := pipe.electBest(match)
	require.NotNil(t, elected)
	assert.Equal(t, "AAAK", elected.assumption.Sequence)
	assert.Equal(t, 0.01, elected.p)
	assert.Equal(t, 1, elected.engines)
}

func TestElectBest_ScoreTieWithinAnEngineKeepsTheFirstCandidate(t *testing.T) {
	pipe, _ := newConsensusPipeline(t)
	match := ports.NewSpectrumMatch("run1.mgf#s1")
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.XTandem, Rank: 1, Sequence: "AAAK", Charge: 2, Score: 0.01, Probability: 1,
	}))
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.XTandem, Rank: 2, Sequence: "CCCK", Charge: 2, Score: 0.01, Probability: 1,
	}))
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.XTandem, Rank: 3, Sequence: "EEEK", Charge: 2, Score: 0.02, Probability: 1,
	}))
	match.SortAssumptions()

	elected := pipe.electBest(match)
	require.NotNil(t, elected)
	assert.Equal(t, "AAAK", elected.assumption.Sequence)
}

func TestElectBest_MultiEngineMultipliesCalibratedProbabilities(t *testing.T) {
	pipe, _ := newConsensusPipeline(t)
	pipe.inputMap.AddPoint(ports.OMSSA, 0.5, false)
	pipe.inputMap.AddPoint(ports.XTandem, 0.5, false)

	match := ports.NewSpectrumMatch("run1.mgf#s1")
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.OMSSA, Rank: 1, Sequence: "AAAK", Charge: 2, Score: 0.03, Probability: 0.3,
	}))
	require.NoError(t, match.AddAssumption(&ports.PeptideAssumption{
		Advocate: ports.XTandem, Rank: 1, Sequence: "AAAK", Charge: 2, Score: 0.01, Probability: 0.2,
	}))
	match.SortAssumptions()

	elected := pipe.electBest(match)
	require.NotNil(t, elected)
	assert.Equal(t, "AAAK", elected.assumption.Sequence)
	assert.InDelta(t, 0.06, elected.p, 1e-12)
	assert.Equal(t, 2, elected.engines)
}

func TestFillPsmMap_OccurrencesSteerLaterElections(t *testing.T) {
	pipe, store := newConsensusPipeline(t)

	// Spectrum a: both engines agree on the SHARED protein's peptide.
	addHit(t, store, "a", ports.OMSSA, "AAAK", 0.01, "SHARED")
	addHit(t, store, "a", ports.XTandem, "AAAK", 0.01, "SHARED")
	// Spectrum b: the engines disagree and the combined probabilities tie,
	// so the accumulated protein occurrences decide.
	addHit(t, store, "b", ports.OMSSA, "CCCK", 0.01, "OTHER")
	addHit(t, store, "b", ports.XTandem, "DDDK", 0.01, "SHARED")
	require.NoError(t, store.Flush())
	require.NoError(t, pipe.estimateInputProbabilities())

	require.NoError(t, pipe.fillPsmMap())

	match, err := store.SpectrumMatch("run1.mgf#b")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.NotNil(t, match.Best)
	assert.Equal(t, "DDDK", match.Best.Sequence)
}
