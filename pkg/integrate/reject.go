package integrate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RejectionConfig carries the configurable sigma thresholds for
// winsorized sigma clipping. The percentile-clip fractions used for
// small stacks are fixed, not configurable.
type RejectionConfig struct {
	LowSigma  float64
	HighSigma float64
}

// DefaultRejectionConfig matches the documented default: winsorized
// sigma clipping rejects samples more than 5 standard deviations from
// the mean on either side.
var DefaultRejectionConfig = RejectionConfig{LowSigma: 5.0, HighSigma: 5.0}

const (
	// percentileClipLow/High are the fixed fractions of the smallest and
	// largest ranked samples dropped for a 3-5 frame stack.
	percentileClipLow  = 0.20
	percentileClipHigh = 0.10

	// winsorizedClampSigma is the fixed bound used to compute the
	// winsorized standard deviation each iteration; it is never
	// configurable, unlike the rejection thresholds applied against it.
	winsorizedClampSigma = 5.0

	winsorizedMaxIterations = 10
	winsorizedMinKept       = 3

	rejectEpsilon = 1e-15
)

// CombineColumn reduces one pixel's values across a stack to a single
// result, following the size-tiered rejection policy: mean for stacks
// under 3, percentile clipping for 3-5, winsorized sigma clipping for 6
// or more. equalized holds the same-length flux-equalized view of
// original used only to decide which samples are outliers; the returned
// value is always the mean (or, failing that, the median) of the
// surviving original values. Also returns how many of the stack's
// samples were rejected, for diagnostics.
func CombineColumn(original, equalized []float64, cfg RejectionConfig) (float64, int) {
	n := len(original)
	switch {
	case n < 3:
		return mean(original), 0
	case n < 6:
		return percentileClipColumn(original, equalized)
	default:
		return winsorizedSigmaClipColumn(original, equalized, cfg)
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentileClipColumn sorts by equalized value, drops floor(n*0.20) of
// the smallest-ranked and floor(n*0.10) of the largest-ranked samples,
// and averages the original values of the survivors. If trimming would
// leave fewer than one survivor, every sample is kept instead.
func percentileClipColumn(original, equalized []float64) (float64, int) {
	n := len(original)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return equalized[idx[i]] < equalized[idx[j]] })

	dropLow := int(float64(n) * percentileClipLow)
	dropHigh := int(float64(n) * percentileClipHigh)
	lo, hi := dropLow, n-dropHigh
	if hi-lo < 1 {
		lo, hi = 0, n
	}
	survivors := idx[lo:hi]

	var sum float64
	for _, i := range survivors {
		sum += original[i]
	}
	return sum / float64(len(survivors)), n - len(survivors)
}

// winsorizedSigmaClipColumn implements the two-stage winsorized
// sigma-clip procedure: each iteration computes the mean/sample-sigma of
// the still-included equalized values, winsorizes a copy of those values
// by clamping to +/- winsorizedClampSigma standard deviations, then
// recomputes mean/sigma on the clamped copy (sigma_w) and rejects
// included samples whose raw equalized value falls outside
// mean +/- cfg.LowSigma/HighSigma * sigma_w. Iteration stops after
// winsorizedMaxIterations, or sooner once sigma or sigma_w drops below
// rejectEpsilon or a pass rejects nothing; at least winsorizedMinKept
// samples are always retained. The result is the mean of the surviving
// original values, or their median if every sample was rejected.
func winsorizedSigmaClipColumn(original, equalized []float64, cfg RejectionConfig) (float64, int) {
	n := len(original)
	included := make([]bool, n)
	for i := range included {
		included[i] = true
	}

	for iter := 0; iter < winsorizedMaxIterations; iter++ {
		count := countIncluded(included)
		if count == 0 {
			break
		}
		rawMean, rawSigma := meanStddevIncluded(equalized, included)
		if rawSigma < rejectEpsilon {
			break
		}
		lowClamp := rawMean - winsorizedClampSigma*rawSigma
		highClamp := rawMean + winsorizedClampSigma*rawSigma

		clamped := make([]float64, n)
		copy(clamped, equalized)
		for i := 0; i < n; i++ {
			if !included[i] {
				continue
			}
			if clamped[i] < lowClamp {
				clamped[i] = lowClamp
			} else if clamped[i] > highClamp {
				clamped[i] = highClamp
			}
		}

		wMean, wSigma := meanStddevIncluded(clamped, included)
		if wSigma < rejectEpsilon {
			break
		}
		lowBound := wMean - cfg.LowSigma*wSigma
		highBound := wMean + cfg.HighSigma*wSigma

		rejectedThisRound := 0
		for i := 0; i < n; i++ {
			if !included[i] {
				continue
			}
			if equalized[i] < lowBound || equalized[i] > highBound {
				if count-rejectedThisRound-1 < winsorizedMinKept {
					continue
				}
				included[i] = false
				rejectedThisRound++
			}
		}
		if rejectedThisRound == 0 {
			break
		}
	}

	var survivors []float64
	rejected := 0
	for i, keep := range included {
		if keep {
			survivors = append(survivors, original[i])
		} else {
			rejected++
		}
	}
	if len(survivors) == 0 {
		return ExactMedian(original), rejected
	}
	return mean(survivors), rejected
}

func countIncluded(included []bool) int {
	n := 0
	for _, v := range included {
		if v {
			n++
		}
	}
	return n
}

// meanStddevIncluded returns the sample mean and sample standard
// deviation (denominator n-1) of the values whose included flag is set.
func meanStddevIncluded(values []float64, included []bool) (float64, float64) {
	var subset []float64
	for i, keep := range included {
		if keep {
			subset = append(subset, values[i])
		}
	}
	switch len(subset) {
	case 0:
		return 0, 0
	case 1:
		return subset[0], 0
	}
	m, variance := stat.MeanVariance(subset, nil)
	return m, math.Sqrt(variance)
}
