package fitsio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadXISFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.xisf")

	img := NewImageData(5, 7, 1)
	for i := range img.Pixels {
		img.Pixels[i] = float64(i) * 0.01
	}
	img.Keywords.Set("FILTER", "L")

	if err := WriteXISF(path, img); err != nil {
		t.Fatalf("WriteXISF: %v", err)
	}

	got, err := ReadXISF(path)
	if err != nil {
		t.Fatalf("ReadXISF: %v", err)
	}

	if !got.SameGeometry(img) {
		t.Fatalf("geometry mismatch: got %dx%dx%d, want %dx%dx%d", got.Width, got.Height, got.Channels, img.Width, img.Height, img.Channels)
	}
	for i := range img.Pixels {
		if math.Abs(got.Pixels[i]-img.Pixels[i]) > 1e-5 {
			t.Errorf("pixel %d = %v, want %v", i, got.Pixels[i], img.Pixels[i])
		}
	}
	if f, ok := got.Keywords.GetString("FILTER"); !ok || f != "L" {
		t.Errorf("FILTER keyword = %q, ok=%v, want L", f, ok)
	}
}

func TestXISFBadSignatureFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.xisf")
	img := NewImageData(2, 2, 1)
	if err := WriteXISF(path, img); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	copy(raw, "NOTXISF!")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadXISFHeaders(path); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("ReadXISFHeaders with a bad signature: err = %v, want ErrMalformedHeader", err)
	}
	if _, err := ReadXISFHeaders(filepath.Join(dir, "nonexistent.xisf")); err == nil {
		t.Error("expected an error reading a nonexistent file, got nil")
	}
}

func TestParseXISFGeometry(t *testing.T) {
	geom, err := parseXISFGeometry("10:20:3")
	if err != nil {
		t.Fatalf("parseXISFGeometry: %v", err)
	}
	if geom.width != 10 || geom.height != 20 || geom.channels != 3 {
		t.Errorf("got %+v, want {10 20 3}", geom)
	}
	if _, err := parseXISFGeometry("bad"); err == nil {
		t.Error("expected an error for malformed geometry, got nil")
	}
}
