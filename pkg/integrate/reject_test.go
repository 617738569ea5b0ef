package integrate

import "testing"

func TestCombineColumnDispatchesBySize(t *testing.T) {
	small := []float64{1, 2}
	if v, rejected := CombineColumn(small, small, DefaultRejectionConfig); v != 1.5 || rejected != 0 {
		t.Errorf("n<3 CombineColumn = (%v, %d), want (1.5, 0)", v, rejected)
	}
}

func TestPercentileClipColumnDropsOutlier(t *testing.T) {
	values := []float64{-100, 1, 2, 3, 4}
	v, rejected := percentileClipColumn(values, values)
	if v != 2.5 {
		t.Errorf("percentileClipColumn result %v, want 2.5 (mean of 1..4 with the -100 outlier dropped)", v)
	}
	if rejected == 0 {
		t.Error("expected at least one sample rejected")
	}
}

func TestPercentileClipColumnThreeSamplesTrimsNone(t *testing.T) {
	values := []float64{1, 2, 3}
	v, rejected := percentileClipColumn(values, values)
	if rejected != 0 {
		t.Errorf("expected no rejection for a 3-sample stack, got %d", rejected)
	}
	if v != 2 {
		t.Errorf("expected mean of all 3 samples (2), got %v", v)
	}
}

func TestWinsorizedSigmaClipColumnRejectsOutlier(t *testing.T) {
	values := []float64{10, 11, 9, 10, 10, 12, 9, 100}
	v, rejected := winsorizedSigmaClipColumn(values, values, DefaultRejectionConfig)
	if rejected == 0 {
		t.Error("expected the 100 outlier to be rejected")
	}
	if v > 15 {
		t.Errorf("combined value %v still dominated by the outlier", v)
	}
}

func TestWinsorizedSigmaClipColumnKeepsUniformStack(t *testing.T) {
	values := []float64{1, 1, 1, 1, 1, 1, 1}
	_, rejected := winsorizedSigmaClipColumn(values, values, DefaultRejectionConfig)
	if rejected != 0 {
		t.Errorf("expected no rejection for a uniform stack, got %d", rejected)
	}
}

func TestWinsorizedSigmaClipColumnUsesOriginalNotEqualizedValues(t *testing.T) {
	original := []float64{10, 10, 10, 10, 10, 10}
	equalized := []float64{10, 10, 10, 10, 10, 1000}
	v, rejected := winsorizedSigmaClipColumn(original, equalized, DefaultRejectionConfig)
	if rejected == 0 {
		t.Fatal("expected the equalized outlier to trigger a rejection")
	}
	if v != 10 {
		t.Errorf("expected surviving original values (all 10) averaged to 10, got %v", v)
	}
}
