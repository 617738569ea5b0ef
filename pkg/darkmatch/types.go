// Package darkmatch selects the best available dark or bias frame for a
// flat exposure group: a tiered policy that prefers an exact-exposure
// dark-class frame, falls back to a near-exposure one (optionally scaled
// by exposure ratio), and finally to a bias frame, scoring candidates
// within a tier by binning/gain/offset/temperature agreement.
package darkmatch

import (
	"errors"

	"github.com/nightflat/flatmaster/pkg/scan"
)

// ErrNoMatchingDark describes a Result whose Chosen is nil. Match itself
// never returns it; flatcal.Run reports that case with its own
// flatcal.ErrNoMatchingDark.
var ErrNoMatchingDark = errors.New("darkmatch: no matching dark or bias found")

// Config carries the dark_matching.* options from the caller's
// processing configuration.
type Config struct {
	EnforceBinning           bool
	PreferSameGainOffset     bool
	PreferClosestTemp        bool
	MaxTempDeltaC            float64
	AllowNearestWithOptimize bool
}

// DefaultConfig matches the documented defaults: binning enforced, gain
// and offset and temperature preferred within 5 degrees C, and the
// near-exposure tiers enabled.
var DefaultConfig = Config{
	EnforceBinning:           true,
	PreferSameGainOffset:     true,
	PreferClosestTemp:        true,
	MaxTempDeltaC:            5.0,
	AllowNearestWithOptimize: true,
}

// Exposure-delta tier boundaries and score weights, per the matching
// algorithm's worked boundary rule: a delta of exactly 2.0s belongs to
// the near-no-optimize tier, and exactly 10.0s belongs to the
// near-optimize tier.
const (
	exactExposureTolerance = 0.001
	nearNoOptimizeMaxDelta = 2.0
	nearOptimizeMaxDelta   = 10.0

	binningScore     = 3.0
	gainOffsetScore  = 2.0
	gainTolerance    = 0.01
	offsetTolerance  = 0.5
	tempScoreBase    = 1.5
	tempScorePerDegC = 0.2

	temperatureWarningDeltaC = 5.0
)

// Tier ranks how a dark was matched, best first.
type Tier int

const (
	TierExact Tier = iota
	TierNearNoOptimize
	TierNearOptimize
	TierBiasFallback
	TierNone
)

// RejectedAlternative records a candidate that was considered but not
// chosen, and the score gap to the winner, for diagnostic purposes.
type RejectedAlternative struct {
	Path     string
	Kind     string
	Score    float64
	ScoreGap float64
}

// maxRejectedAlternatives caps the diagnostic list to the top five
// runner-ups.
const maxRejectedAlternatives = 5

// Result is the outcome of matching one exposure group against a dark
// catalog: either a chosen frame, tier and kind, or a reason none
// qualified.
type Result struct {
	Group  *scan.ExposureGroup
	Chosen *scan.DarkFrame
	Tier   Tier

	// Optimize reports whether the engine must scale the dark's pixels
	// by (flat exposure / dark exposure) before subtracting it, because
	// the matched dark's own exposure is not close enough to trust
	// un-scaled.
	Optimize bool

	// Kind is the human-readable match description, e.g.
	// "MasterDark(exact)", "Dark(nearest<=10s+optimize,8.000s)" or
	// plain "MasterBias" for a bias-fallback match.
	Kind string

	Score float64

	HasTemperatureDelta bool
	TemperatureDelta     float64

	Warnings []string
	Rejected []RejectedAlternative
}
