package integrate

import (
	"context"
	"math"
	"testing"

	"github.com/nightflat/flatmaster/pkg/darkmatch"
	"github.com/nightflat/flatmaster/pkg/fitsio"
	"github.com/nightflat/flatmaster/pkg/metadata"
	"github.com/nightflat/flatmaster/pkg/scan"
)

func TestScaleDarkMultipliesInPlace(t *testing.T) {
	dark := fitsio.NewImageData(2, 1, 1)
	dark.Pixels = []float64{2, 4}
	scaleDark(dark, 1.5)
	if dark.Pixels[0] != 3 || dark.Pixels[1] != 6 {
		t.Errorf("scaleDark result = %v, want [3 6]", dark.Pixels)
	}
}

func TestCalibrateFrameRejectsGeometryMismatch(t *testing.T) {
	frame := fitsio.NewImageData(4, 4, 1)
	dark := fitsio.NewImageData(2, 2, 1)
	if _, err := calibrateFrame(frame, dark); err == nil {
		t.Error("expected a geometry mismatch error, got nil")
	}
}

func TestCalibrateFrameSubtractsDark(t *testing.T) {
	frame := fitsio.NewImageData(2, 1, 1)
	frame.Pixels = []float64{0.5, 0.6}
	dark := fitsio.NewImageData(2, 1, 1)
	dark.Pixels = []float64{0.1, 0.1}
	out, err := calibrateFrame(frame, dark)
	if err != nil {
		t.Fatalf("calibrateFrame: %v", err)
	}
	if out.Pixels[0] != 0.4 || math.Abs(out.Pixels[1]-0.5) > 1e-9 {
		t.Errorf("out.Pixels = %v, want [0.4 0.5]", out.Pixels)
	}
}

func TestNormalizeToMedianHitsOne(t *testing.T) {
	img := fitsio.NewImageData(3, 1, 1)
	img.Pixels = []float64{2, 4, 6}
	normalizeToMedian(img)
	if ExactMedian(img.Pixels) != 1 {
		t.Errorf("median after normalize = %v, want 1", ExactMedian(img.Pixels))
	}
}

func TestNormalizeToMedianSkipsNearZero(t *testing.T) {
	img := fitsio.NewImageData(3, 1, 1)
	img.Pixels = []float64{0, 0, 0}
	normalizeToMedian(img)
	if img.Pixels[0] != 0 {
		t.Errorf("expected a near-zero-median frame to be left unchanged, got %v", img.Pixels)
	}
}

func TestEqualizeFluxFactorsMatchFirstFrame(t *testing.T) {
	a := fitsio.NewImageData(2, 1, 1)
	a.Pixels = []float64{10, 10}
	b := fitsio.NewImageData(2, 1, 1)
	b.Pixels = []float64{5, 5}
	factors := equalizeFluxFactors([]*fitsio.ImageData{a, b})
	if factors[0] != 1 {
		t.Errorf("factor[0] = %v, want 1", factors[0])
	}
	if math.Abs(factors[1]-2) > 1e-9 {
		t.Errorf("factor[1] = %v, want 2 (10/5)", factors[1])
	}
}

func TestCombinePixelwiseAveragesSurvivors(t *testing.T) {
	a := fitsio.NewImageData(1, 1, 1)
	a.Pixels[0] = 10
	b := fitsio.NewImageData(1, 1, 1)
	b.Pixels[0] = 11
	c := fitsio.NewImageData(1, 1, 1)
	c.Pixels[0] = 9

	out, _, err := combinePixelwise([]*fitsio.ImageData{a, b, c}, []float64{1, 1, 1}, DefaultRejectionConfig)
	if err != nil {
		t.Fatalf("combinePixelwise: %v", err)
	}
	if math.Abs(out.Pixels[0]-10) > 0.01 {
		t.Errorf("combined pixel = %v, want close to 10", out.Pixels[0])
	}
}

// TestIntegrateUniformFramesProducesUnitMedian reproduces the
// documented worked example: three identical flats, each 0.5 minus a
// 0.1 dark, normalize to a median of 1.0, combine, and rescale by the
// reference median (also 1.0) leaves every pixel at 1.0.
func TestIntegrateUniformFramesProducesUnitMedian(t *testing.T) {
	makeFlat := func(v float64) *fitsio.ImageData {
		img := fitsio.NewImageData(2, 2, 1)
		for i := range img.Pixels {
			img.Pixels[i] = v
		}
		return img
	}
	dark := makeFlat(0.1)

	paths := map[string]*fitsio.ImageData{
		"f1.fits":   makeFlat(0.5),
		"f2.fits":   makeFlat(0.5),
		"f3.fits":   makeFlat(0.5),
		"dark.fits": dark,
	}
	loader := func(path string) (*fitsio.ImageData, error) {
		return paths[path].Clone(), nil
	}

	group := &scan.ExposureGroup{
		Filter: "L", Exposure: 60, HasExposure: true, Binning: "1",
		Frames: []*metadata.ImageMetadata{
			{Path: "f1.fits"}, {Path: "f2.fits"}, {Path: "f3.fits"},
		},
	}
	match := darkmatch.Result{
		Chosen: &scan.DarkFrame{Meta: &metadata.ImageMetadata{Path: "dark.fits", Exposure: 60, HasExposure: true, FrameType: metadata.FrameMasterDark}},
		Tier:   darkmatch.TierExact,
	}

	res, err := Integrate(context.Background(), group, match, loader, DefaultRejectionConfig)
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	for i, v := range res.Master.Pixels {
		if math.Abs(v-1.0) > 1e-9 {
			t.Errorf("Master.Pixels[%d] = %v, want 1.0", i, v)
		}
	}
}
