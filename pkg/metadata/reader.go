package metadata

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nightflat/flatmaster/pkg/fitsio"
)

// Keyword search order per field: a header may use any of several
// observatory-software conventions for the same quantity, so each field
// tries a list of aliases in priority order before falling back to the
// filename.
var (
	exposureKeywords    = []string{"EXPTIME", "EXPOSURE", "EXPOSURETIME", "X_EXPOSURE"}
	binningKeywords     = []string{"XBINNING", "BINNING", "CCDBINNING", "BINNING_MODE"}
	gainKeywords        = []string{"GAIN", "EGAIN"}
	offsetKeywords      = []string{"OFFSET", "BLACKLEVEL"}
	temperatureKeywords = []string{"CCD-TEMP", "CCD_TEMP", "SENSOR_TEMP", "SENSOR-TEMP", "SET-TEMP", "SET_TEMP"}
	filterKeywords      = []string{"FILTER", "INSFLNAM"}
	frameTypeKeywords   = []string{"IMAGETYP", "FRAMETYPE", "FRAME"}
)

// filenameExposureSuffixRE matches a bare "<num>s" token with a word
// boundary before the number, e.g. "flat_300s_L.fits".
var filenameExposureSuffixRE = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)s\b`)

// filenameExposureLabelRE matches an explicit "EXPOSURE" label followed
// by a number, tolerating the usual separator characters.
var filenameExposureLabelRE = regexp.MustCompile(`(?i)EXPOSURE[_\-=:\s]?(\d+(?:\.\d+)?)`)

// filenameTemperatureRE matches a "temp" label followed by a (possibly
// negative) number.
var filenameTemperatureRE = regexp.MustCompile(`(?i)temp[_\-=\s](-?\d+(?:\.\d+)?)`)

// frameTypeTokens maps the tokens inferFrameType/matchFrameToken search
// for to the frame type they denote. Longer (more specific) tokens take
// priority over shorter ones they contain, so "MASTERDARKFLAT" wins over
// "MASTERDARK", "DARKFLAT" and "DARK" when all are substrings of the
// same string.
var frameTypeTokens = map[string]FrameType{
	"MASTERDARKFLAT": FrameMasterDarkFlat,
	"MASTERDARK":     FrameMasterDark,
	"DARKFLAT":       FrameDarkFlat,
	"DARK":           FrameDark,
	"MASTERFLAT":     FrameMasterFlat,
	"FLAT":           FrameFlat,
	"MASTERBIAS":     FrameMasterBias,
	"BIAS":           FrameBias,
	"ZERO":           FrameBias,
	"LIGHT":          FrameLight,
}

// ReadMetadata extracts calibration fields from path, preferring header
// keywords read via fitsio and falling back to filename inference for
// frame type, exposure and temperature when the header leaves them unset.
// Filter, binning, gain and offset come from header keywords only.
func ReadMetadata(path string) (*ImageMetadata, error) {
	kw, geom, err := readHeaders(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", path, err)
	}

	m := &ImageMetadata{Path: path}
	if geom != nil {
		m.Width, m.Height = geom[0], geom[1]
	}

	m.FrameType = inferFrameType(kw, path)

	if exp, ok := kw.GetFirstFloat(exposureKeywords...); ok {
		m.Exposure, m.HasExposure = exp, true
	} else if exp, ok := exposureFromFilename(path); ok {
		m.Exposure, m.HasExposure = exp, true
	}
	m.ExposureKey = ExposureKey(m.Exposure, m.HasExposure)

	if f, ok := kw.GetFirstString(filterKeywords...); ok {
		m.Filter = normalizeFilter(f)
	}

	if t, ok := kw.GetFirstFloat(temperatureKeywords...); ok {
		m.Temperature, m.HasTemp = t, true
	} else if t, ok := temperatureFromFilename(path); ok {
		m.Temperature, m.HasTemp = t, true
	}

	if b, ok := kw.GetFirstString(binningKeywords...); ok {
		m.Binning = normalizeBinning(b)
	}

	if g, ok := kw.GetFirstFloat(gainKeywords...); ok {
		m.Gain, m.HasGain = g, true
	}

	if o, ok := kw.GetFirstFloat(offsetKeywords...); ok {
		m.Offset, m.HasOffset = o, true
	}

	return m, nil
}

func readHeaders(path string) (fitsio.Keywords, *[2]int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		kw, err := fitsio.ReadFITSHeaders(path)
		if err != nil {
			return nil, nil, err
		}
		w, _ := kw.GetInt("NAXIS1")
		h, _ := kw.GetInt("NAXIS2")
		return kw, &[2]int{int(w), int(h)}, nil
	case ".xisf":
		kw, err := fitsio.ReadXISFHeaders(path)
		if err != nil {
			return nil, nil, err
		}
		return kw, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized extension %q", fitsio.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// inferFrameType looks at IMAGETYP/FRAMETYPE/FRAME first, falling back to
// the longest matching token found anywhere in the filename (so
// "MasterDarkFlat" is preferred over "MasterDark", "DarkFlat" or "Dark"
// when more than one substring is present).
func inferFrameType(kw fitsio.Keywords, path string) FrameType {
	if v, ok := kw.GetFirstString(frameTypeKeywords...); ok {
		if t, ok := matchFrameToken(v); ok {
			return t
		}
	}
	base := strings.ToUpper(filepath.Base(path))
	return classifyTokens(base)
}

func matchFrameToken(v string) (FrameType, bool) {
	upper := strings.ToUpper(strings.TrimSpace(v))
	t := classifyTokens(upper)
	return t, t != FrameUnknown
}

func classifyTokens(upper string) FrameType {
	best := FrameUnknown
	bestLen := 0
	for token, t := range frameTypeTokens {
		if strings.Contains(upper, token) && len(token) > bestLen {
			best, bestLen = t, len(token)
		}
	}
	return best
}

func exposureFromFilename(path string) (float64, bool) {
	base := filepath.Base(path)
	if m := filenameExposureSuffixRE.FindStringSubmatch(base); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	if m := filenameExposureLabelRE.FindStringSubmatch(base); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func temperatureFromFilename(path string) (float64, bool) {
	m := filenameTemperatureRE.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeFilter(f string) string {
	return strings.ToUpper(strings.TrimSpace(f))
}

func normalizeBinning(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
