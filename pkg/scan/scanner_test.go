package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nightflat/flatmaster/pkg/fitsio"
	"github.com/nightflat/flatmaster/pkg/metadata"
)

func writeTestFITS(t *testing.T, path string, kw map[string]string) {
	t.Helper()
	img := fitsio.NewImageData(2, 2, 1)
	for k, v := range kw {
		img.Keywords.Set(k, v)
	}
	if err := fitsio.WriteFITS(path, img); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
}

func TestScanFlatsGroupsAndSkipsTiny(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writeTestFITS(t, filepath.Join(dir, flatName(i, "Ha", "120")), map[string]string{
			"IMAGETYP": "FLAT", "FILTER": "Ha", "EXPTIME": "120.0",
		})
	}
	writeTestFITS(t, filepath.Join(dir, "only_one_Lum_60s.fits"), map[string]string{
		"IMAGETYP": "FLAT", "FILTER": "L", "EXPTIME": "60.0",
	})

	jobs, tally, err := ScanFlats(context.Background(), []string{dir}, nil, nil)
	if err != nil {
		t.Fatalf("ScanFlats: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 directory job, got %d", len(jobs))
	}
	job := jobs[0]
	if len(job.Groups) != 1 {
		t.Errorf("expected 1 valid group, got %d", len(job.Groups))
	}
	if len(job.SkippedTiny) != 1 {
		t.Errorf("expected 1 skipped tiny group, got %d", len(job.SkippedTiny))
	}
	if tally.GroupsSkipped != 1 {
		t.Errorf("tally.GroupsSkipped = %d, want 1", tally.GroupsSkipped)
	}
}

func TestScanFlatsSkipsReservedDirectories(t *testing.T) {
	dir := t.TempDir()
	mastersDir := filepath.Join(dir, "_darkmasters")
	if err := os.MkdirAll(mastersDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFITS(t, filepath.Join(mastersDir, "masterflat_Ha.fits"), map[string]string{
		"IMAGETYP": "FLAT", "FILTER": "Ha", "EXPTIME": "120.0",
	})

	_, tally, err := ScanFlats(context.Background(), []string{dir}, nil, nil)
	if err != nil {
		t.Fatalf("ScanFlats: %v", err)
	}
	if tally.DirsPruned != 1 {
		t.Errorf("tally.DirsPruned = %d, want 1", tally.DirsPruned)
	}
}

func TestDarkCatalogPartitionsDarkAndBiasClasses(t *testing.T) {
	darkMeta := &metadata.ImageMetadata{Path: "dark1.fits", ExposureKey: "120s", Exposure: 120, HasExposure: true, FrameType: metadata.FrameDark}
	biasMeta := &metadata.ImageMetadata{Path: "bias1.fits", FrameType: metadata.FrameBias}
	catalog := NewDarkCatalog([]*DarkFrame{
		{Meta: darkMeta},
		{Meta: biasMeta},
	})

	if len(catalog.DarkClass()) != 1 {
		t.Fatalf("expected 1 dark-class frame, got %d", len(catalog.DarkClass()))
	}
	if len(catalog.BiasClass()) != 1 {
		t.Fatalf("expected 1 bias-class frame, got %d", len(catalog.BiasClass()))
	}
	if len(catalog.All()) != 2 {
		t.Fatalf("expected 2 total frames, got %d", len(catalog.All()))
	}
}

func TestBackfillDarkTemperaturesUsesBinningMedian(t *testing.T) {
	frames := []*DarkFrame{
		{Meta: &metadata.ImageMetadata{Path: "a.fits", Binning: "1", HasTemp: true, Temperature: -10}},
		{Meta: &metadata.ImageMetadata{Path: "b.fits", Binning: "1", HasTemp: true, Temperature: -12}},
		{Meta: &metadata.ImageMetadata{Path: "c.fits", Binning: "1", HasTemp: false}},
		{Meta: &metadata.ImageMetadata{Path: "d.fits", Binning: "2", HasTemp: false}},
	}
	backfillDarkTemperatures(frames)

	if !frames[2].Meta.HasTemp || frames[2].Meta.Temperature != -11 {
		t.Errorf("expected c.fits backfilled to median -11, got has=%v temp=%v", frames[2].Meta.HasTemp, frames[2].Meta.Temperature)
	}
	if frames[3].Meta.HasTemp {
		t.Errorf("expected d.fits to remain without a temperature (no binning-2 samples to derive a median from)")
	}
}

func flatName(i int, filter, exposure string) string {
	return filter + "_" + exposure + "s_" + string(rune('a'+i)) + ".fits"
}
