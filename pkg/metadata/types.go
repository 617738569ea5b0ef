// Package metadata extracts calibration-relevant fields (frame type,
// exposure time, filter, temperature, binning, gain, offset) from image
// headers, falling back to filename inference for frame type, exposure
// and temperature when their keywords are absent.
package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FrameType classifies what an image represents for calibration purposes.
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameLight
	FrameFlat
	FrameDark
	FrameDarkFlat
	FrameBias
	FrameMasterFlat
	FrameMasterDark
	FrameMasterDarkFlat
	FrameMasterBias
)

func (t FrameType) String() string {
	switch t {
	case FrameLight:
		return "Light"
	case FrameFlat:
		return "Flat"
	case FrameDark:
		return "Dark"
	case FrameDarkFlat:
		return "DarkFlat"
	case FrameBias:
		return "Bias"
	case FrameMasterFlat:
		return "MasterFlat"
	case FrameMasterDark:
		return "MasterDark"
	case FrameMasterDarkFlat:
		return "MasterDarkFlat"
	case FrameMasterBias:
		return "MasterBias"
	default:
		return "Unknown"
	}
}

// ImageMetadata is the set of calibration-relevant fields extracted from
// one file, plus the exposure key used to group and match frames.
type ImageMetadata struct {
	Path string

	FrameType FrameType

	Exposure    float64
	HasExposure bool
	// ExposureKey is the exposure rendered to three decimals with
	// trailing zeros trimmed and an "s" suffix, or "Unknown" when no
	// exposure could be found in the header or filename.
	ExposureKey string

	Filter string

	Temperature float64
	HasTemp     bool

	// Binning is the normalized (trimmed, upper-cased) binning tag taken
	// verbatim from the header, e.g. "1" or "2X2". It is left empty when
	// no binning keyword is present.
	Binning string

	Gain    float64
	HasGain bool

	Offset    float64
	HasOffset bool

	Width  int
	Height int
}

// FormatExposure3dp renders an exposure value to three decimal places
// using round-half-to-even, then trims trailing zeros (and a trailing
// dot): 4.0 -> "4", 4.500 -> "4.5", 4.1235 -> "4.123" or "4.124"
// depending on which neighbor is even. This mirrors the original tool's
// kexp() so two frames shot at "the same" exposure always group
// identically regardless of float accumulation noise in the header
// value. It carries no "Unknown" handling and no unit suffix; callers
// needing either wrap it (see ExposureKey).
func FormatExposure3dp(exposure float64) string {
	rounded := roundHalfEven(exposure, 3)
	s := strconv.FormatFloat(rounded, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-0" {
		s = "0"
	}
	return s
}

// ExposureKey is the canonical grouping/matching key for an exposure
// time: FormatExposure3dp with a trailing "s", or "Unknown" when the
// exposure is not known at all.
func ExposureKey(exposure float64, hasExposure bool) string {
	if !hasExposure {
		return "Unknown"
	}
	return FormatExposure3dp(exposure) + "s"
}

// roundHalfEven rounds v to the given number of decimal places using
// banker's rounding: a value exactly halfway between two representable
// values rounds to whichever is even, avoiding the systematic upward
// bias of round-half-away-from-zero when many exposures cluster on a
// half-step boundary (e.g. many 2.5s frames).
func roundHalfEven(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	scaled := v * scale
	floor := math.Floor(scaled)
	diff := scaled - floor
	switch {
	case diff < 0.5:
		return floor / scale
	case diff > 0.5:
		return (floor + 1) / scale
	default:
		if math.Mod(floor, 2) == 0 {
			return floor / scale
		}
		return (floor + 1) / scale
	}
}

func (m *ImageMetadata) String() string {
	return fmt.Sprintf("%s type=%s exp=%s filter=%q temp=%.1f bin=%s", m.Path, m.FrameType, m.ExposureKey, m.Filter, m.Temperature, m.Binning)
}
