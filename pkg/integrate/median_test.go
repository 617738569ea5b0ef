package integrate

import (
	"math/rand"
	"sort"
	"testing"
)

func TestExactMedianOdd(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	if got := ExactMedian(values); got != 3 {
		t.Errorf("ExactMedian(%v) = %v, want 3", values, got)
	}
}

func TestExactMedianEven(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	if got := ExactMedian(values); got != 2.5 {
		t.Errorf("ExactMedian(%v) = %v, want 2.5", values, got)
	}
}

func TestExactMedianSingleAndEmpty(t *testing.T) {
	if got := ExactMedian([]float64{7}); got != 7 {
		t.Errorf("ExactMedian single = %v, want 7", got)
	}
	if got := ExactMedian(nil); got != 0 {
		t.Errorf("ExactMedian empty = %v, want 0", got)
	}
}

func TestExactMedianAllSame(t *testing.T) {
	values := []float64{2, 2, 2, 2}
	if got := ExactMedian(values); got != 2 {
		t.Errorf("ExactMedian(all same) = %v, want 2", got)
	}
}

func TestExactMedianMatchesSortAgainstRandomData(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := 50 + trial
		values := make([]float64, n)
		for i := range values {
			values[i] = rng.Float64() * 1000
		}
		want := sortedMedian(values)
		got := ExactMedian(values)
		if diff := want - got; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("trial %d: ExactMedian = %v, want %v", trial, got, want)
		}
	}
}

func sortedMedian(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
