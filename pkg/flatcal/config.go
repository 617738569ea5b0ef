package flatcal

import (
	"github.com/nightflat/flatmaster/pkg/darkmatch"
	"github.com/nightflat/flatmaster/pkg/integrate"
)

// ProcessingConfiguration holds the options a Run call needs beyond the
// set of root directories: output location and the knobs that tune
// matching/rejection behavior for unusual equipment or datasets.
type ProcessingConfiguration struct {
	// OutputDir is where integrated masters are written. Must already
	// exist; Run does not create it.
	OutputDir string

	// CacheDBPath, if non-empty, persists the metadata memoization cache
	// to this file across runs. Empty uses an in-process cache only.
	CacheDBPath string

	// WriteFITS additionally writes a .fits sibling of each master
	// alongside the default .xisf output.
	WriteFITS bool

	// RejectionLowSigma/RejectionHighSigma set the winsorized sigma-clip
	// thresholds for stacks of six or more frames.
	RejectionLowSigma  float64
	RejectionHighSigma float64

	// EnforceBinning rewards a candidate dark for sharing the flat's
	// binning when scoring within a tier; a dark with other binning is
	// still eligible.
	EnforceBinning bool

	// PreferSameGainOffset rewards a candidate dark for matching the
	// flat's gain and offset when scoring within a tier.
	PreferSameGainOffset bool

	// PreferClosestTemp rewards a candidate dark for matching the flat's
	// sensor temperature when scoring within a tier.
	PreferClosestTemp bool

	// MaxTempDeltaC bounds how large a temperature difference still
	// earns a scoring bonus.
	MaxTempDeltaC float64

	// AllowNearestWithOptimize permits matching a near-exposure dark
	// (rather than only an exact one or a bias fallback), scaling it by
	// exposure ratio when it isn't close enough to trust unscaled.
	AllowNearestWithOptimize bool

	// DeleteCalibrated is carried for configuration-surface completeness
	// with the option this tool's ancestor exposed; this implementation
	// never writes intermediate calibrated frames to disk; see DESIGN.md.
	DeleteCalibrated bool

	// RequireDarks makes a group with no qualifying dark or bias a
	// failure instead of a skip-with-warning.
	RequireDarks bool
}

// DefaultProcessingConfiguration returns the documented defaults for
// every dark-matching and rejection knob. Callers that only need to set
// OutputDir (and optionally CacheDBPath/WriteFITS) should start from
// this rather than a zero-valued struct, since Go's zero values for
// these fields (false, 0) would silently disable behavior the
// specification mandates by default (binning enforcement, gain/offset/
// temperature preference, 5-sigma rejection, near-exposure matching).
func DefaultProcessingConfiguration() ProcessingConfiguration {
	return ProcessingConfiguration{
		RejectionLowSigma:        integrate.DefaultRejectionConfig.LowSigma,
		RejectionHighSigma:       integrate.DefaultRejectionConfig.HighSigma,
		EnforceBinning:           darkmatch.DefaultConfig.EnforceBinning,
		PreferSameGainOffset:     darkmatch.DefaultConfig.PreferSameGainOffset,
		PreferClosestTemp:        darkmatch.DefaultConfig.PreferClosestTemp,
		MaxTempDeltaC:            darkmatch.DefaultConfig.MaxTempDeltaC,
		AllowNearestWithOptimize: darkmatch.DefaultConfig.AllowNearestWithOptimize,
		RequireDarks:             false,
	}
}

func (c ProcessingConfiguration) darkMatchConfig() darkmatch.Config {
	return darkmatch.Config{
		EnforceBinning:           c.EnforceBinning,
		PreferSameGainOffset:     c.PreferSameGainOffset,
		PreferClosestTemp:        c.PreferClosestTemp,
		MaxTempDeltaC:            c.MaxTempDeltaC,
		AllowNearestWithOptimize: c.AllowNearestWithOptimize,
	}
}

func (c ProcessingConfiguration) rejectionConfig() integrate.RejectionConfig {
	return integrate.RejectionConfig{
		LowSigma:  c.RejectionLowSigma,
		HighSigma: c.RejectionHighSigma,
	}
}
