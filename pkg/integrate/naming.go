package integrate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nightflat/flatmaster/pkg/metadata"
	"github.com/nightflat/flatmaster/pkg/scan"
)

// dateInPathRE matches a literal YYYY-MM-DD segment somewhere in a
// directory path, e.g. ".../2026-01-15/Flats/...". Compact (no-hyphen)
// dates are not recognized; a path holding only one gets today's date.
var dateInPathRE = regexp.MustCompile(`(20\d{2}-\d{2}-\d{2})`)

// filterInFilenameRE pulls a filter token out of a frame filename, e.g.
// "Flat_FILTER_Ha_-10.00_60.00s_Bin1_..." or "flat_L_001.fits".
var filterInFilenameRE = regexp.MustCompile(`(?i)(?:FILTER)?[_-]?([LRGB]a?|SHO|Ha|SII|OIII|NII)(?:[_.\-]|$)`)

// MasterFilename constructs the output filename for an integrated master
// flat: MasterFlat_<date>_<filter>_Bin<binning>_<exposure>s.xisf.
func MasterFilename(group *scan.ExposureGroup) string {
	filter := guessFilter(group)
	date := guessDate(group.Dir)
	exposure := metadata.FormatExposure3dp(group.Exposure)
	return fmt.Sprintf("MasterFlat_%s_%s_Bin%s_%ss.xisf", date, filter, sanitizeToken(group.Binning), exposure)
}

// guessFilter tries to read the filter token from the first frame's
// filename, then falls back to the group directory's leaf name, upper
// cased; a channel like Ha or a broadband letter is the common case.
func guessFilter(group *scan.ExposureGroup) string {
	if len(group.Frames) > 0 {
		base := filepath.Base(group.Frames[0].Path)
		if m := filterInFilenameRE.FindStringSubmatch(base); m != nil {
			return strings.ToUpper(sanitizeToken(m[1]))
		}
	}
	name := sanitizeToken(strings.ToUpper(filepath.Base(group.Dir)))
	if name == "" {
		return "NOFILTER"
	}
	return name
}

// guessDate extracts a YYYY-MM-DD date from dir's path segments,
// innermost first, falling back to today's UTC date if none is found.
func guessDate(dir string) string {
	segments := strings.Split(filepath.ToSlash(dir), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if m := dateInPathRE.FindStringSubmatch(segments[i]); m != nil {
			return m[1]
		}
	}
	return time.Now().UTC().Format("2006-01-02")
}

func sanitizeToken(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
