package targetdecoy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Histogram bookkeeping
// =============================================================================

func TestAddPoint_CountsTargetsAndDecoys(t *testing.T) {
	m := New()
	m.AddPoint(0.1, false)
	m.AddPoint(0.1, false)
	m.AddPoint(0.1, true)
	m.AddPoint(0.5, false)

	assert.Equal(t, 4, m.Size())
	assert.Equal(t, 3, m.Targets())
	assert.Equal(t, 1, m.Decoys())
}

func TestRemovePoint_NeverGoesNegative(t *testing.T) {
	m := New()
	m.AddPoint(0.2, false)
	m.RemovePoint(0.2, false)
	m.RemovePoint(0.2, false) // already empty
	m.RemovePoint(0.9, true)  // never added

	assert.Zero(t, m.Size())
	assert.Zero(t, m.Targets())
	assert.Zero(t, m.Decoys())
}

func TestRemovePoint_DropsEmptyBin(t *testing.T) {
	m := New()
	m.AddPoint(0.3, true)
	m.RemovePoint(0.3, true)

	m.EstimateProbabilities()
	assert.Equal(t, 1.0, m.Probability(0.3), "empty map answers 1")
}

// =============================================================================
// Cure — sparse bin pooling
// =============================================================================

func TestCure_PreservesTotalCount(t *testing.T) {
	m := New()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		m.AddPoint(rng.Float64(), rng.Intn(4) == 0)
	}
	before := m.Size()
	targets, decoys := m.Targets(), m.Decoys()

	m.Cure()

	assert.Equal(t, before, m.Size())
	assert.Equal(t, targets, m.Targets())
	assert.Equal(t, decoys, m.Decoys())
}

func TestCure_PooledBinsHaveSupport(t *testing.T) {
	m := New()
	// 40 singleton bins, each with one observation.
	for i := 0; i < 40; i++ {
		m.AddPoint(float64(i)/40, i%5 == 0)
	}
	m.Cure()
	m.EstimateProbabilities()

	total := 0
	for _, sb := range m.State().Bins {
		combined := sb.Targets + sb.Decoys
		total += combined
		assert.GreaterOrEqual(t, combined, minBinSupport)
	}
	assert.Equal(t, 40, total, "pooling preserves every observation")
}

func TestCure_RawPointsStayRemovable(t *testing.T) {
	m := New()
	for i := 0; i < 30; i++ {
		m.AddPoint(float64(i)/30, false)
	}
	m.Cure()
	m.EstimateProbabilities()

	// The original score still resolves even though pooling merged its bin.
	m.RemovePoint(1.0/30, false)
	assert.Equal(t, 29, m.Size())
}

func TestCure_SingleBinUntouched(t *testing.T) {
	m := New()
	m.AddPoint(0.5, false)
	m.Cure()
	assert.Equal(t, 1, m.Size())
}

func TestAbsorb_FoldsCounts(t *testing.T) {
	a, b := New(), New()
	a.AddPoint(0.1, false)
	a.AddPoint(0.2, true)
	b.AddPoint(0.1, false)
	b.AddPoint(0.3, false)

	a.Absorb(b)

	assert.Equal(t, 4, a.Size())
	assert.Equal(t, 3, a.Targets())
	assert.Equal(t, 1, a.Decoys())
}

// =============================================================================
// Probability estimation
// =============================================================================

func TestEstimateProbabilities_MonotoneNonDecreasing(t *testing.T) {
	m := New()
	rng := rand.New(rand.NewSource(42))
	// Targets skew low, decoys skew high, with enough noise to force the
	// running-maximum clamp to do real work.
	for i := 0; i < 2000; i++ {
		m.AddPoint(rng.Float64()*rng.Float64(), false)
		m.AddPoint(1-rng.Float64()*rng.Float64()*0.8, true)
	}
	m.Cure()
	m.EstimateProbabilities()

	bins := m.State().Bins
	require.NotEmpty(t, bins)
	for i := 1; i < len(bins); i++ {
		assert.GreaterOrEqual(t, bins[i].PEP, bins[i-1].PEP,
			"PEP decreased between scores %f and %f", bins[i-1].Score, bins[i].Score)
	}
}

func TestEstimateProbabilities_LocalRatio(t *testing.T) {
	m := New()
	// One bin: 3 decoys among 10 observations.
	for i := 0; i < 7; i++ {
		m.AddPoint(0.2, false)
	}
	for i := 0; i < 3; i++ {
		m.AddPoint(0.2, true)
	}
	m.EstimateProbabilities()

	assert.InDelta(t, 0.3, m.Probability(0.2), 0.001)
}

func TestProbability_LookupRules(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.AddPoint(0.1, false)
	}
	for i := 0; i < 5; i++ {
		m.AddPoint(0.5, false)
	}
	for i := 0; i < 5; i++ {
		m.AddPoint(0.5, true)
	}
	m.EstimateProbabilities()

	assert.InDelta(t, 0.0, m.Probability(0.05), 0.001, "better than every bin")
	assert.InDelta(t, 0.0, m.Probability(0.3), 0.001, "between bins takes the bin below")
	assert.InDelta(t, 0.5, m.Probability(0.5), 0.001, "exact bin")
	assert.InDelta(t, 0.5, m.Probability(0.9), 0.001, "worse than every bin")
}

func TestProbability_BeforeEstimationIsOne(t *testing.T) {
	m := New()
	m.AddPoint(0.1, false)
	assert.Equal(t, 1.0, m.Probability(0.1))
}

// =============================================================================
// FDR thresholding
// =============================================================================

func TestComputeResults_AdmitsExactlyTheCleanTargets(t *testing.T) {
	m := New()
	// 990 targets scoring better than a cluster of 10 decoys.
	for i := 0; i < 990; i++ {
		m.AddPoint(float64(i)/1000, false)
	}
	for i := 0; i < 10; i++ {
		m.AddPoint(0.995, true)
	}
	m.EstimateProbabilities()
	res := m.ComputeResults(1)

	require.False(t, res.NoValidated)
	assert.Equal(t, 990, res.NValidated)
	assert.InDelta(t, 0.989, res.ScoreLimit, 1e-9)
	assert.Zero(t, res.NFalsePositives)
	assert.Less(t, res.ScoreLimit, 0.995, "decoy cluster stays out")
}

func TestComputeResults_NoValidatedWhenDecoysLead(t *testing.T) {
	m := New()
	for i := 0; i < 50; i++ {
		m.AddPoint(0.1, true)
		m.AddPoint(0.9, false)
	}
	m.EstimateProbabilities()
	res := m.ComputeResults(1)

	assert.True(t, res.NoValidated)
	assert.True(t, m.NoValidated())
}

func TestComputeResults_ToleratesDecoysWithinBudget(t *testing.T) {
	m := New()
	// 1000 targets, then 5 decoys, then 1000 more targets: at the worst
	// target score the ratio is 5/2000 = 0.25%, inside a 1% budget.
	for i := 0; i < 1000; i++ {
		m.AddPoint(float64(i)/10000, false)
	}
	for i := 0; i < 5; i++ {
		m.AddPoint(0.2, true)
	}
	for i := 0; i < 1000; i++ {
		m.AddPoint(0.3+float64(i)/10000, false)
	}
	m.EstimateProbabilities()
	res := m.ComputeResults(1)

	require.False(t, res.NoValidated)
	assert.Equal(t, 2000, res.NValidated)
	assert.InDelta(t, 5, res.NFalsePositives, 0.001)
}

func TestNoValidated_TrueBeforeThresholding(t *testing.T) {
	assert.True(t, New().NoValidated())
}

// =============================================================================
// Suspicious input
// =============================================================================

func TestSuspiciousInput_SparseMap(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.AddPoint(float64(i), i%2 == 0)
	}
	assert.True(t, m.SuspiciousInput())
}

func TestSuspiciousInput_NoDecoys(t *testing.T) {
	m := New()
	for i := 0; i < 200; i++ {
		m.AddPoint(float64(i), false)
	}
	assert.True(t, m.SuspiciousInput())
}

func TestSuspiciousInput_DecoysAtTheGoodEnd(t *testing.T) {
	m := New()
	// Decoys dominate the best scores: separation is inverted.
	for i := 0; i < 50; i++ {
		m.AddPoint(0.01+float64(i)/1000, true)
	}
	for i := 0; i < 150; i++ {
		m.AddPoint(0.5+float64(i)/1000, false)
	}
	assert.True(t, m.SuspiciousInput())
}

func TestSuspiciousInput_HealthySeparation(t *testing.T) {
	m := New()
	for i := 0; i < 300; i++ {
		m.AddPoint(float64(i)/1000, false)
	}
	for i := 0; i < 100; i++ {
		m.AddPoint(0.5+float64(i)/1000, true)
	}
	assert.False(t, m.SuspiciousInput())
}

// =============================================================================
// State round-trip
// =============================================================================

func TestState_RoundTripPreservesCurveAndResults(t *testing.T) {
	m := New()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		m.AddPoint(rng.Float64()*0.5, false)
		if i%4 == 0 {
			m.AddPoint(0.5+rng.Float64()*0.5, true)
		}
	}
	m.Cure()
	m.EstimateProbabilities()
	m.ComputeResults(1)

	restored := NewFromState(m.State())

	assert.Equal(t, m.Size(), restored.Size())
	assert.Equal(t, m.Targets(), restored.Targets())
	assert.Equal(t, m.Decoys(), restored.Decoys())
	require.NotNil(t, restored.Results())
	assert.Equal(t, m.Results().ScoreLimit, restored.Results().ScoreLimit)
	for _, probe := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1} {
		assert.InDelta(t, m.Probability(probe), restored.Probability(probe), 1e-12)
	}
}

func TestNewFromState_NilIsEmpty(t *testing.T) {
	m := NewFromState(nil)
	assert.Zero(t, m.Size())
	assert.Equal(t, 1.0, m.Probability(0.5))
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkEstimateProbabilities(b *testing.B) {
	m := New()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50000; i++ {
		m.AddPoint(rng.Float64(), rng.Intn(3) == 0)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.EstimateProbabilities()
	}
}

func BenchmarkProbabilityLookup(b *testing.B) {
	m := New()
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50000; i++ {
		m.AddPoint(rng.Float64(), rng.Intn(3) == 0)
	}
	m.EstimateProbabilities()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Probability(rng.Float64())
	}
}
