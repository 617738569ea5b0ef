package fitsio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadFITSRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.fits")

	img := NewImageData(4, 3, 1)
	for i := range img.Pixels {
		img.Pixels[i] = float64(i) / 10.0
	}
	img.Keywords.Set("FILTER", "Ha")
	img.Keywords.Set("EXPTIME", "300.0")

	if err := WriteFITS(path, img); err != nil {
		t.Fatalf("WriteFITS: %v", err)
	}

	got, err := ReadFITS(path)
	if err != nil {
		t.Fatalf("ReadFITS: %v", err)
	}

	if !got.SameGeometry(img) {
		t.Fatalf("geometry mismatch: got %dx%dx%d, want %dx%dx%d", got.Width, got.Height, got.Channels, img.Width, img.Height, img.Channels)
	}
	for i := range img.Pixels {
		if math.Abs(got.Pixels[i]-img.Pixels[i]) > 1e-5 {
			t.Errorf("pixel %d = %v, want %v", i, got.Pixels[i], img.Pixels[i])
		}
	}
	if f, ok := got.Keywords.GetString("FILTER"); !ok || f != "Ha" {
		t.Errorf("FILTER keyword = %q, ok=%v, want Ha", f, ok)
	}
}

func TestReadFITSTruncatedHeaderFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.fits")
	if err := os.WriteFile(path, []byte("SIMPLE  =                    T"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFITS(path); err == nil {
		t.Error("expected an error reading a truncated header, got nil")
	}
}

func TestFileBlockSizeConstants(t *testing.T) {
	if fitsBlockSize%fitsCardSize != 0 {
		t.Errorf("fitsBlockSize %d is not a multiple of fitsCardSize %d", fitsBlockSize, fitsCardSize)
	}
}
