package integrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/nightflat/flatmaster/pkg/darkmatch"
	"github.com/nightflat/flatmaster/pkg/fitsio"
	"github.com/nightflat/flatmaster/pkg/scan"
)

// ErrNoDark is returned when Integrate is called with a match that has
// no chosen dark or bias frame. Integrating a group without calibration
// is never a silent fallback; callers decide up front whether to skip
// the group or fail it and never reach this function without a match.
var ErrNoDark = errors.New("integrate: no matched dark or bias frame")

// normalizationEpsilon is the |median| floor below which a frame is left
// unscaled rather than divided by a near-zero value.
const normalizationEpsilon = 1e-15

// Result is one integrated master flat plus the diagnostics a caller
// needs to report what went into it.
type Result struct {
	Group       *scan.ExposureGroup
	Master      *fitsio.ImageData
	DarkMatch   darkmatch.Result
	FrameCount  int
	RejectedPct float64
}

// Integrate runs the full per-group pipeline:
//  1. order the frames deterministically by filename;
//  2. load the matched dark, scaling its pixels by
//     flat_exposure/dark_exposure when the match requires optimization;
//  3. calibrate each flat by subtracting the (possibly scaled) dark;
//  4. normalize each calibrated frame to its own median (so its median
//     becomes 1.0), leaving near-zero-median frames unscaled;
//  5. compute per-frame flux-equalization factors used only to decide
//     which pixel values are outliers, never applied to the values that
//     get averaged;
//  6. combine pixel-by-pixel with the size-appropriate rejection policy;
//  7. rescale the combined result by the first frame's post-
//     normalization median; that median is 1.0 whenever step 4 scaled
//     the first frame, so the master keeps a median near 1.0;
//  8. stamp IMAGETYP and return.
func Integrate(ctx context.Context, group *scan.ExposureGroup, match darkmatch.Result, loader func(path string) (*fitsio.ImageData, error), rejCfg RejectionConfig) (*Result, error) {
	if len(group.Frames) == 0 {
		return nil, fmt.Errorf("integrate: group %s/%s has no frames", group.Filter, group.ExposureKey)
	}
	if match.Chosen == nil {
		return nil, fmt.Errorf("integrate: group %s/%s: %w", group.Filter, group.ExposureKey, ErrNoDark)
	}

	orderedPaths := orderFrames(group)

	frames := make([]*fitsio.ImageData, 0, len(orderedPaths))
	for _, path := range orderedPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := loader(path)
		if err != nil {
			return nil, fmt.Errorf("integrate: loading %s: %w", path, err)
		}
		frames = append(frames, img)
	}

	dark, err := loader(match.Chosen.Meta.Path)
	if err != nil {
		return nil, fmt.Errorf("integrate: loading dark %s: %w", match.Chosen.Meta.Path, err)
	}
	if match.Optimize {
		darkExposure := match.Chosen.Meta.Exposure
		if darkExposure > 0 {
			scale := group.Exposure / darkExposure
			scaleDark(dark, scale)
		}
	}

	calibrated := make([]*fitsio.ImageData, 0, len(frames))
	for _, f := range frames {
		c, err := calibrateFrame(f, dark)
		if err != nil {
			return nil, err
		}
		normalizeToMedian(c)
		calibrated = append(calibrated, c)
	}

	referenceMedian := ExactMedian(calibrated[0].Pixels)

	factors := equalizeFluxFactors(calibrated)
	combined, rejectedPct, err := combinePixelwise(calibrated, factors, rejCfg)
	if err != nil {
		return nil, err
	}
	for i := range combined.Pixels {
		combined.Pixels[i] *= referenceMedian
	}

	combined.Keywords = calibrated[0].Keywords.Clone()
	combined.Keywords.Set("IMAGETYP", "Master Flat")

	return &Result{
		Group:       group,
		Master:      combined,
		DarkMatch:   match,
		FrameCount:  len(frames),
		RejectedPct: rejectedPct,
	}, nil
}

// orderFrames sorts paths case-insensitively so the same input directory
// always produces byte-identical pixel combination order, regardless of
// filesystem iteration order.
func orderFrames(group *scan.ExposureGroup) []string {
	paths := make([]string, len(group.Frames))
	for i, f := range group.Frames {
		paths[i] = f.Path
	}
	sort.Slice(paths, func(i, j int) bool { return strings.ToLower(paths[i]) < strings.ToLower(paths[j]) })
	return paths
}

// scaleDark multiplies dark's pixels in place by scale.
func scaleDark(dark *fitsio.ImageData, scale float64) {
	for i := range dark.Pixels {
		dark.Pixels[i] *= scale
	}
}

// calibrateFrame subtracts dark from frame pixelwise. Negative results
// are allowed; they are not clamped.
func calibrateFrame(frame, dark *fitsio.ImageData) (*fitsio.ImageData, error) {
	if !frame.SameGeometry(dark) {
		return nil, fmt.Errorf("%w: frame %dx%dx%d dark %dx%dx%d", fitsio.ErrBadGeometry, frame.Width, frame.Height, frame.Channels, dark.Width, dark.Height, dark.Channels)
	}
	out := frame.Clone()
	for i := range out.Pixels {
		out.Pixels[i] = frame.Pixels[i] - dark.Pixels[i]
	}
	return out, nil
}

// normalizeToMedian divides img's pixels in place by its own median, so
// the median becomes 1.0. A frame whose median magnitude is below
// normalizationEpsilon is left unchanged rather than divided toward
// infinity.
func normalizeToMedian(img *fitsio.ImageData) {
	median := ExactMedian(img.Pixels)
	if median < 0 {
		median = -median
		if median < normalizationEpsilon {
			return
		}
	} else if median < normalizationEpsilon {
		return
	}
	factor := 1.0 / ExactMedian(img.Pixels)
	for i := range img.Pixels {
		img.Pixels[i] *= factor
	}
}

// equalizeFluxFactors computes, for each frame, mean(frame[0])/mean(f):
// a per-frame factor used only to build the "equalized" view combine
// uses to decide which samples are outliers. Frames are never rescaled
// by this factor themselves; the values averaged into the final master
// are always the un-equalized normalized values.
func equalizeFluxFactors(frames []*fitsio.ImageData) []float64 {
	factors := make([]float64, len(frames))
	mean0, _ := stats.Mean(frames[0].Pixels)
	for i, f := range frames {
		mi, _ := stats.Mean(f.Pixels)
		if mi < 0 {
			mi = -mi
		}
		if mi < normalizationEpsilon {
			factors[i] = 1
			continue
		}
		fm, _ := stats.Mean(f.Pixels)
		factors[i] = mean0 / fm
	}
	return factors
}

// combinePixelwise builds the output plane one pixel at a time: gather
// the original (normalized) and equalized values from every frame at
// that pixel, run the size-appropriate rejection policy, and take its
// result. Returns the overall fraction of samples rejected across the
// whole plane as a diagnostic.
func combinePixelwise(frames []*fitsio.ImageData, factors []float64, cfg RejectionConfig) (*fitsio.ImageData, float64, error) {
	first := frames[0]
	for _, f := range frames[1:] {
		if !f.SameGeometry(first) {
			return nil, 0, fmt.Errorf("%w: frames in group do not share geometry", fitsio.ErrBadGeometry)
		}
	}

	out := fitsio.NewImageData(first.Width, first.Height, first.Channels)
	n := first.NumPixels()
	original := make([]float64, len(frames))
	equalized := make([]float64, len(frames))

	var totalSamples, totalRejected int64
	for p := 0; p < n; p++ {
		for fi, f := range frames {
			original[fi] = f.Pixels[p]
			equalized[fi] = f.Pixels[p] * factors[fi]
		}
		value, rejected := CombineColumn(original, equalized, cfg)
		out.Pixels[p] = value
		totalSamples += int64(len(frames))
		totalRejected += int64(rejected)
	}

	rejectedPct := 0.0
	if totalSamples > 0 {
		rejectedPct = float64(totalRejected) / float64(totalSamples) * 100
	}
	return out, rejectedPct, nil
}
