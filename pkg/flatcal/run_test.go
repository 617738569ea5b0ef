package flatcal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nightflat/flatmaster/pkg/fitsio"
)

func writeFixture(t *testing.T, path string, kw map[string]string, fill float64) {
	t.Helper()
	img := fitsio.NewImageData(4, 4, 1)
	for i := range img.Pixels {
		img.Pixels[i] = fill
	}
	for k, v := range kw {
		img.Keywords.Set(k, v)
	}
	if err := fitsio.WriteFITS(path, img); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
}

func TestRunIntegratesAGroupEndToEnd(t *testing.T) {
	flatsDir := t.TempDir()
	darksDir := t.TempDir()
	outDir := t.TempDir()

	for i := 0; i < 4; i++ {
		writeFixture(t, filepath.Join(flatsDir, "flat"+string(rune('a'+i))+".fits"),
			map[string]string{"IMAGETYP": "FLAT", "FILTER": "Ha", "EXPTIME": "30.0", "CCD-TEMP": "-10.0"},
			0.5+float64(i)*0.001)
	}
	writeFixture(t, filepath.Join(darksDir, "dark1.fits"),
		map[string]string{"IMAGETYP": "DARK", "EXPTIME": "30.0", "CCD-TEMP": "-10.0"}, 0.01)

	cfg := DefaultProcessingConfiguration()
	cfg.OutputDir = outDir
	report, err := Run(context.Background(), []string{flatsDir}, []string{darksDir}, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 group in report, got %d", len(report.Groups))
	}
	g := report.Groups[0]
	if g.Err != nil {
		t.Fatalf("group failed: %v", g.Err)
	}
	if g.Skipped {
		t.Fatalf("group unexpectedly skipped: %s", g.Warning)
	}
	if _, err := os.Stat(g.OutputPath); err != nil {
		t.Errorf("expected output master at %s: %v", g.OutputPath, err)
	}
}

func TestRunSkipsGroupWithNoMatchingDarkByDefault(t *testing.T) {
	flatsDir := t.TempDir()
	outDir := t.TempDir()

	for i := 0; i < 4; i++ {
		writeFixture(t, filepath.Join(flatsDir, "flat"+string(rune('a'+i))+".fits"),
			map[string]string{"IMAGETYP": "FLAT", "FILTER": "Ha", "EXPTIME": "30.0"},
			0.5)
	}

	cfg := DefaultProcessingConfiguration()
	cfg.OutputDir = outDir
	report, err := Run(context.Background(), []string{flatsDir}, nil, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 group in report, got %d", len(report.Groups))
	}
	if !report.Groups[0].Skipped {
		t.Error("expected group to be skipped for lack of a matching dark")
	}
	if report.SkippedNoDark != 1 {
		t.Errorf("SkippedNoDark = %d, want 1", report.SkippedNoDark)
	}
}

func TestRunFailsGroupWithNoMatchingDarkWhenRequired(t *testing.T) {
	flatsDir := t.TempDir()
	outDir := t.TempDir()

	for i := 0; i < 4; i++ {
		writeFixture(t, filepath.Join(flatsDir, "flat"+string(rune('a'+i))+".fits"),
			map[string]string{"IMAGETYP": "FLAT", "FILTER": "Ha", "EXPTIME": "30.0"},
			0.5)
	}

	cfg := DefaultProcessingConfiguration()
	cfg.OutputDir = outDir
	cfg.RequireDarks = true
	report, err := Run(context.Background(), []string{flatsDir}, nil, cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 group in report, got %d", len(report.Groups))
	}
	if report.Groups[0].Err == nil {
		t.Error("expected a failure when RequireDarks is set and no dark matches")
	}
}
