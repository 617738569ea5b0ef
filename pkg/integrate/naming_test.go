package integrate

import (
	"strings"
	"testing"
	"time"

	"github.com/nightflat/flatmaster/pkg/metadata"
	"github.com/nightflat/flatmaster/pkg/scan"
)

func TestMasterFilenameUsesFilenameFilterToken(t *testing.T) {
	g := &scan.ExposureGroup{
		Dir: "/data/2026-01-15/Flats", Exposure: 120, Binning: "1",
		Frames: []*metadata.ImageMetadata{{Path: "/data/2026-01-15/Flats/Flat_Ha_120.00s_Bin1_001.fits"}},
	}
	got := MasterFilename(g)
	want := "MasterFlat_2026-01-15_HA_Bin1_120s.xisf"
	if got != want {
		t.Errorf("MasterFilename = %q, want %q", got, want)
	}
}

func TestMasterFilenameFallsBackToDirectoryName(t *testing.T) {
	g := &scan.ExposureGroup{
		Dir: "/data/2026-01-15/L", Exposure: 60, Binning: "2",
		Frames: []*metadata.ImageMetadata{{Path: "/data/2026-01-15/L/frame_0001.fits"}},
	}
	got := MasterFilename(g)
	want := "MasterFlat_2026-01-15_L_Bin2_60s.xisf"
	if got != want {
		t.Errorf("MasterFilename = %q, want %q", got, want)
	}
}

func TestMasterFilenameNoDateFallsBackToToday(t *testing.T) {
	g := &scan.ExposureGroup{
		Dir: "/data/session-one/L", Exposure: 60, Binning: "2",
		Frames: []*metadata.ImageMetadata{{Path: "/data/session-one/L/frame_0001.fits"}},
	}
	got := MasterFilename(g)
	wantDate := time.Now().UTC().Format("2006-01-02")
	if !strings.Contains(got, wantDate) {
		t.Errorf("MasterFilename = %q, want it to contain today's date %q", got, wantDate)
	}
}

func TestGuessDateRequiresHyphenatedForm(t *testing.T) {
	if got := guessDate("/a/20260301/b"); got == "20260301" {
		t.Errorf("guessDate should not accept a compact (non-hyphenated) date, got %q", got)
	}
	if got := guessDate("/a/2026-03-01/b"); got != "2026-03-01" {
		t.Errorf("guessDate = %q, want 2026-03-01", got)
	}
}
