// Package integrate combines a matched exposure group of flat frames (and
// its matched dark/bias frame, which is required) into a single master flat: dark
// subtraction, scale optimization, outlier rejection, normalization and
// per-frame flux equalization before the final pixel-wise combine.
package integrate

import "sort"

// histogramBuckets is the resolution of the refinement pass: large enough
// that each bucket spans a negligible fraction of the data's range, so
// the values falling in the bucket(s) straddling the median are few
// enough to sort directly rather than approximating from bucket counts.
const histogramBuckets = 1 << 20

// ExactMedian computes the exact median of values via a three-pass
// histogram refinement: a first pass finds the range, a second pass
// buckets every value into histogramBuckets uniform bins and counts them,
// and a third pass sorts only the value(s) in the bucket(s) that contain
// the median rank(s), reading the exact median out of that sorted slice.
// This is exact, unlike an interpolated histogram-percentile estimate,
// because the bucket(s) holding the median rank are fully materialized
// and sorted rather than approximated from their counts.
func ExactMedian(values []float64) float64 {
	n := len(values)
	switch {
	case n == 0:
		return 0
	case n == 1:
		return values[0]
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return lo
	}

	bucketOf := func(v float64) int {
		b := int((v - lo) / (hi - lo) * float64(histogramBuckets))
		if b < 0 {
			b = 0
		}
		if b >= histogramBuckets {
			b = histogramBuckets - 1
		}
		return b
	}

	counts := make([]int, histogramBuckets)
	for _, v := range values {
		counts[bucketOf(v)]++
	}

	lowRank := (n - 1) / 2
	highRank := n / 2

	lowBucket, highBucket := -1, -1
	cumulative := 0
	for b := 0; b < histogramBuckets; b++ {
		next := cumulative + counts[b]
		if lowBucket == -1 && lowRank < next {
			lowBucket = b
		}
		if highBucket == -1 && highRank < next {
			highBucket = b
			break
		}
		cumulative = next
	}

	if lowBucket == highBucket {
		members := membersOf(values, bucketOf, lowBucket)
		sort.Float64s(members)
		baseRank := rankBefore(counts, lowBucket)
		if lowRank == highRank {
			return members[lowRank-baseRank]
		}
		return (members[lowRank-baseRank] + members[highRank-baseRank]) / 2
	}

	// median ranks straddle two adjacent buckets: materialize both and
	// pick the exact boundary values directly.
	members := membersOf(values, bucketOf, lowBucket)
	members = append(members, membersOf(values, bucketOf, highBucket)...)
	sort.Float64s(members)
	baseRank := rankBefore(counts, lowBucket)
	return (members[lowRank-baseRank] + members[highRank-baseRank]) / 2
}

func membersOf(values []float64, bucketOf func(float64) int, bucket int) []float64 {
	var out []float64
	for _, v := range values {
		if bucketOf(v) == bucket {
			out = append(out, v)
		}
	}
	return out
}

func rankBefore(counts []int, bucket int) int {
	sum := 0
	for b := 0; b < bucket; b++ {
		sum += counts[b]
	}
	return sum
}
