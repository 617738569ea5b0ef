package flatcal

import (
	"fmt"
	"strings"

	"github.com/nightflat/flatmaster/pkg/integrate"
)

// GroupReport summarizes the outcome for one exposure group, whether it
// produced a master, was skipped for lack of a matching dark, or failed
// outright.
type GroupReport struct {
	Dir         string
	Filter      string
	Exposure    string
	Binning     string
	FrameCount  int
	OutputPath  string
	DarkKind    string
	RejectedPct float64

	// Skipped marks a group that had no qualifying dark or bias and
	// RequireDarks was false, so it was left out of the run rather than
	// failed.
	Skipped bool
	Warning string

	Err error
}

// Report is the full outcome of a Run call: per-group results plus the
// scan-wide tallies.
type Report struct {
	Groups        []GroupReport
	SkippedGroups int
	SkippedNoDark int
	DirsVisited   int
	DirsPruned    int
}

// String renders a plain-text summary, in the style of a build log: one
// line per group, then totals. Rendering this text is the caller's
// responsibility to print or discard; Run never writes it anywhere
// itself.
func (r *Report) String() string {
	var b strings.Builder
	succeeded, failed, skippedNoDark := 0, 0, 0
	for _, g := range r.Groups {
		switch {
		case g.Skipped:
			skippedNoDark++
			fmt.Fprintf(&b, "SKIPPED %s [%s %s bin%s]: %s\n", g.Dir, g.Filter, g.Exposure, g.Binning, g.Warning)
		case g.Err != nil:
			failed++
			fmt.Fprintf(&b, "FAILED  %s [%s %s bin%s]: %v\n", g.Dir, g.Filter, g.Exposure, g.Binning, g.Err)
		default:
			succeeded++
			fmt.Fprintf(&b, "OK      %s -> %s (%d frames, dark=%s, rejected=%.1f%%)\n",
				g.Dir, g.OutputPath, g.FrameCount, g.DarkKind, g.RejectedPct)
		}
	}
	fmt.Fprintf(&b, "%d succeeded, %d failed, %d skipped (no matching dark), %d skipped (too few frames); %d directories visited, %d pruned\n",
		succeeded, failed, skippedNoDark, r.SkippedGroups, r.DirsVisited, r.DirsPruned)
	return b.String()
}

func reportFromResult(dir string, res *integrate.Result, outputPath string) GroupReport {
	return GroupReport{
		Dir:         dir,
		Filter:      res.Group.Filter,
		Exposure:    res.Group.ExposureKey,
		Binning:     res.Group.Binning,
		FrameCount:  res.FrameCount,
		OutputPath:  outputPath,
		DarkKind:    res.DarkMatch.Kind,
		RejectedPct: res.RejectedPct,
	}
}
