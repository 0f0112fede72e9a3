package ptm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/corey/pepvalid/internal/ports"
)

const (
	// maxPeakDepth is the deepest per-window peak filter tried.
	maxPeakDepth = 10

	// windowWidth is the m/z width of one peak filtering window.
	windowWidth = 100.0

	// minSurvival floors the binomial tail so scores stay finite. The floor
	// corresponds to a score of 100.
	minSurvival = 1e-10
)

// unambiguousScore is granted when the sequence offers no alternative site.
const unambiguousScore = 100.0

// AScore scores the placement of one modification copy on a peptide against
// its spectrum. The result maps each candidate site profile to a score: the
// winning site carries its separation from the runner-up computed on
// site-determining ions, every other site carries its (negative) distance to
// the winner. Nil when the modification cannot sit anywhere.
func AScore(sequence, mod string, observedSites []int, spectrum *ports.Spectrum, mzTol float64) map[string]float64 {
	candidates := CandidateSites(sequence, mod, observedSites)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return map[string]float64{ports.SiteKey(candidates): unambiguousScore}
	}
	if spectrum == nil || len(spectrum.Peaks) == 0 {
		return nil
	}

	modMass := ModMass(mod)

	// Pick the peak depth with the widest gap between the two best sites.
	bestDepth := 1
	bestGap := math.Inf(-1)
	var bestScores map[int]float64
	for depth := 1; depth <= maxPeakDepth; depth++ {
		peaks := topPeaksPerWindow(spectrum.Peaks, depth)
		p := matchProbability(depth, mzTol)
		scores := make(map[int]float64, len(candidates))
		for _, site := range candidates {
			ions := fragmentMzs(sequence, modMass, site)
			k := countMatches(ions, peaks, mzTol)
			scores[site] = binomialScore(k, len(ions), p)
		}
		first, second := topTwo(candidates, scores)
		gap := scores[first] - scores[second]
		if gap > bestGap {
			bestGap = gap
			bestDepth = depth
			bestScores = scores
		}
	}

	first, second := topTwo(candidates, bestScores)
	peaks := topPeaksPerWindow(spectrum.Peaks, bestDepth)
	p := matchProbability(bestDepth, mzTol)

	// Separation on the ions that actually tell the two placements apart.
	ionsFirst, ionsSecond := siteDetermining(sequence, modMass, first, second)
	kFirst := countMatches(ionsFirst, peaks, mzTol)
	kSecond := countMatches(ionsSecond, peaks, mzTol)
	separation := binomialScore(kFirst, len(ionsFirst), p) - binomialScore(kSecond, len(ionsSecond), p)
	if separation < 0 {
		separation = 0
	}

	result := make(map[string]float64, len(candidates))
	result[ports.SiteKey([]int{first})] = separation
	for _, site := range candidates {
		if site == first {
			continue
		}
		result[ports.SiteKey([]int{site})] = bestScores[site] - bestScores[first]
	}
	return result
}

// matchProbability is the chance of one theoretical ion hitting a retained
// peak by accident: depth peaks per window, each covering twice the
// tolerance.
func matchProbability(depth int, mzTol float64) float64 {
	p := float64(depth) * 2 * mzTol / windowWidth
	if p >= 1 {
		p = 0.999
	}
	if p <= 0 {
		p = 1e-6
	}
	return p
}

// binomialScore is -10·log10 of the binomial tail P(X >= k) with n trials.
func binomialScore(k, n int, p float64) float64 {
	if k <= 0 || n == 0 {
		return 0
	}
	dist := distuv.Binomial{N: float64(n), P: p}
	survival := 1 - dist.CDF(float64(k-1))
	if survival < minSurvival {
		survival = minSurvival
	}
	return -10 * math.Log10(survival)
}

// topPeaksPerWindow keeps the depth most intense peaks of every windowWidth
// wide m/z window and returns their m/z values sorted ascending.
func topPeaksPerWindow(peaks []ports.Peak, depth int) []float64 {
	windows := make(map[int][]ports.Peak)
	for _, pk := range peaks {
		w := int(pk.Mz / windowWidth)
		windows[w] = append(windows[w], pk)
	}
	var mzs []float64
	for _, wpeaks := range windows {
		sort.Slice(wpeaks, func(i, j int) bool {
			if wpeaks[i].Intensity != wpeaks[j].Intensity {
				return wpeaks[i].Intensity > wpeaks[j].Intensity
			}
			return wpeaks[i].Mz < wpeaks[j].Mz
		})
		if len(wpeaks) > depth {
			wpeaks = wpeaks[:depth]
		}
		for _, pk := range wpeaks {
			mzs = append(mzs, pk.Mz)
		}
	}
	sort.Float64s(mzs)
	return mzs
}

// countMatches counts theoretical ions having a retained peak within the
// tolerance. peakMzs must be sorted.
func countMatches(ions, peakMzs []float64, mzTol float64) int {
	matched := 0
	for _, ion := range ions {
		i := sort.SearchFloat64s(peakMzs, ion-mzTol)
		if i < len(peakMzs) && peakMzs[i] <= ion+mzTol {
			matched++
		}
	}
	return matched
}

// topTwo returns the two best-scoring sites, ties broken by position.
func topTwo(candidates []int, scores map[int]float64) (first, second int) {
	ordered := make([]int, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i]], scores[ordered[j]]
		if si != sj {
			return si > sj
		}
		return ordered[i] < ordered[j]
	})
	return ordered[0], ordered[1]
}
