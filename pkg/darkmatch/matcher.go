package darkmatch

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nightflat/flatmaster/pkg/metadata"
	"github.com/nightflat/flatmaster/pkg/scan"
)

// candidate is one scored dark/bias frame under consideration for a
// group, tagged with the tier it qualifies for and its exposure delta.
type candidate struct {
	frame *scan.DarkFrame
	tier  Tier
	score float64
	delta float64
}

// Match scores every eligible candidate in catalog against group and
// returns the winner plus the reasoning behind rejecting the runner-ups.
//
// Candidates are assigned to the first tier (in order) with at least one
// member:
//  1. exact: dark-class frames within 0.001s of the group's exposure.
//  2. near, no optimize: dark-class frames with 0.001s <= |delta| <= 2.0s
//     (only when cfg.AllowNearestWithOptimize).
//  3. near, with optimize: dark-class frames with 2.0s < |delta| <= 10.0s
//     (only when cfg.AllowNearestWithOptimize).
//  4. bias fallback: any cataloged bias/master-bias frame.
//
// Tiers 2 and 3 rank by smallest exposure delta first; tiers 1 and 4 rank
// by score only. All tiers break remaining ties by a fixed type priority
// (MasterDarkFlat > DarkFlat > MasterDark > Dark > MasterBias > Bias),
// then by case-insensitive path.
func Match(group *scan.ExposureGroup, catalog *scan.DarkCatalog, cfg Config) Result {
	var tier1, tier2, tier3 []candidate
	for _, d := range catalog.DarkClass() {
		delta := math.Abs(group.Exposure - d.Meta.Exposure)
		sc := score(group, d, cfg)
		switch {
		case delta < exactExposureTolerance:
			tier1 = append(tier1, candidate{d, TierExact, sc, delta})
		case cfg.AllowNearestWithOptimize && delta <= nearNoOptimizeMaxDelta:
			tier2 = append(tier2, candidate{d, TierNearNoOptimize, sc, delta})
		case cfg.AllowNearestWithOptimize && delta <= nearOptimizeMaxDelta:
			tier3 = append(tier3, candidate{d, TierNearOptimize, sc, delta})
		}
	}

	var tier4 []candidate
	for _, b := range catalog.BiasClass() {
		sc := score(group, b, cfg)
		tier4 = append(tier4, candidate{b, TierBiasFallback, sc, math.Abs(group.Exposure - b.Meta.Exposure)})
	}

	rankByDelta := func(c []candidate) {
		sort.SliceStable(c, func(i, j int) bool {
			if c[i].delta != c[j].delta {
				return c[i].delta < c[j].delta
			}
			return less(c[i], c[j])
		})
	}
	rankByScore := func(c []candidate) {
		sort.SliceStable(c, func(i, j int) bool { return less(c[i], c[j]) })
	}

	rankByScore(tier1)
	rankByDelta(tier2)
	rankByDelta(tier3)
	rankByScore(tier4)

	var winners []candidate
	switch {
	case len(tier1) > 0:
		winners = tier1
	case len(tier2) > 0:
		winners = tier2
	case len(tier3) > 0:
		winners = tier3
	case len(tier4) > 0:
		winners = tier4
	default:
		return Result{Group: group, Tier: TierNone}
	}

	winner := winners[0]
	result := Result{
		Group:    group,
		Chosen:   winner.frame,
		Tier:     winner.tier,
		Optimize: winner.tier == TierNearOptimize,
		Score:    winner.score,
		Kind:     kind(winner),
	}

	rep := group.Frames[0]
	if rep.HasTemp && winner.frame.Meta.HasTemp {
		result.HasTemperatureDelta = true
		result.TemperatureDelta = math.Abs(rep.Temperature - winner.frame.Meta.Temperature)
	}
	if result.Optimize {
		result.Warnings = append(result.Warnings, "dark scale optimization required")
	}
	if result.HasTemperatureDelta && result.TemperatureDelta > temperatureWarningDeltaC {
		result.Warnings = append(result.Warnings, fmt.Sprintf("dark temperature differs by %.1f°C", result.TemperatureDelta))
	}

	for i := 1; i < len(winners) && i <= maxRejectedAlternatives; i++ {
		result.Rejected = append(result.Rejected, RejectedAlternative{
			Path:     winners[i].frame.Meta.Path,
			Kind:     kind(winners[i]),
			Score:    winners[i].score,
			ScoreGap: winner.score - winners[i].score,
		})
	}

	return result
}

func less(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	pa, pb := typePriority(a.frame.Meta.FrameType), typePriority(b.frame.Meta.FrameType)
	if pa != pb {
		return pa < pb
	}
	return strings.ToLower(a.frame.Meta.Path) < strings.ToLower(b.frame.Meta.Path)
}

// typePriority breaks ties between same-score, same-tier candidates:
// lower is preferred.
func typePriority(t metadata.FrameType) int {
	switch t {
	case metadata.FrameMasterDarkFlat:
		return 0
	case metadata.FrameDarkFlat:
		return 1
	case metadata.FrameMasterDark:
		return 2
	case metadata.FrameDark:
		return 3
	case metadata.FrameMasterBias:
		return 4
	case metadata.FrameBias:
		return 5
	default:
		return 99
	}
}

// score rates how well a dark-class or bias-class candidate agrees with
// the group's representative (first, sorted) frame on binning, gain,
// offset and temperature. It only breaks ties within a tier; it never
// decides which tier a candidate belongs to.
func score(group *scan.ExposureGroup, candidate *scan.DarkFrame, cfg Config) float64 {
	rep := group.Frames[0]
	dark := candidate.Meta

	var s float64
	if cfg.EnforceBinning && rep.Binning != "" && dark.Binning != "" && rep.Binning == dark.Binning {
		s += binningScore
	}
	if cfg.PreferSameGainOffset && rep.HasGain && dark.HasGain && math.Abs(rep.Gain-dark.Gain) < gainTolerance {
		s += gainOffsetScore
	}
	if cfg.PreferSameGainOffset && rep.HasOffset && dark.HasOffset && math.Abs(rep.Offset-dark.Offset) < offsetTolerance {
		s += gainOffsetScore
	}
	if cfg.PreferClosestTemp && rep.HasTemp && dark.HasTemp {
		delta := math.Abs(rep.Temperature - dark.Temperature)
		if delta <= cfg.MaxTempDeltaC {
			s += tempScoreBase - tempScorePerDegC*delta
		}
	}
	return s
}

// kind renders the human-readable match description for a winning
// candidate: "<Type>(exact)", "<Type>(nearest<=2s,<darkExp>s)",
// "<Type>(nearest<=10s+optimize,<darkExp>s)", or plain "<Type>" for a
// bias-fallback match.
func kind(c candidate) string {
	typeName := c.frame.Meta.FrameType.String()
	switch c.tier {
	case TierExact:
		return fmt.Sprintf("%s(exact)", typeName)
	case TierNearNoOptimize:
		return fmt.Sprintf("%s(nearest<=2s,%ss)", typeName, formatExposureFixed3(c.frame.Meta.Exposure))
	case TierNearOptimize:
		return fmt.Sprintf("%s(nearest<=10s+optimize,%ss)", typeName, formatExposureFixed3(c.frame.Meta.Exposure))
	default:
		return typeName
	}
}

// formatExposureFixed3 renders an exposure to exactly three decimal
// places without trimming, e.g. 8 -> "8.000", matching the literal
// numbers the matcher's diagnostic kind strings report.
func formatExposureFixed3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
