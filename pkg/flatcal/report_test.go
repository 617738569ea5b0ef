package flatcal

import (
	"strings"
	"testing"
)

func TestReportStringSummarizesGroups(t *testing.T) {
	r := &Report{
		Groups: []GroupReport{
			{Dir: "/a", Filter: "Ha", Exposure: "120s", Binning: "1", FrameCount: 5, OutputPath: "/out/a.xisf", DarkKind: "MasterDark(exact)", RejectedPct: 4.2},
			{Dir: "/b", Filter: "L", Exposure: "60s", Binning: "1", Err: ErrNoMatchingDark},
			{Dir: "/c", Filter: "R", Exposure: "30s", Binning: "1", Skipped: true, Warning: "no matching dark or bias found"},
		},
		SkippedGroups: 2,
		SkippedNoDark: 1,
		DirsVisited:   10,
		DirsPruned:    1,
	}
	s := r.String()
	if !strings.Contains(s, "OK") || !strings.Contains(s, "/out/a.xisf") {
		t.Errorf("expected success line with output path, got: %s", s)
	}
	if !strings.Contains(s, "FAILED") || !strings.Contains(s, "/b") {
		t.Errorf("expected failure line for /b, got: %s", s)
	}
	if !strings.Contains(s, "SKIPPED") || !strings.Contains(s, "/c") {
		t.Errorf("expected skipped line for /c, got: %s", s)
	}
	if !strings.Contains(s, "1 succeeded, 1 failed, 1 skipped (no matching dark), 2 skipped (too few frames)") {
		t.Errorf("expected totals line, got: %s", s)
	}
}
