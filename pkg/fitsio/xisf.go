package fitsio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	xisfSignature   = "XISF0100"
	xisfHeaderStart = 16 // signature(8) + headerLength(4) + reserved(4)
	xisfPadAlign    = 4096
)

// xisfHeader mirrors the subset of the XISF XML header this codec needs:
// the monolithic Image element plus its FITSKeyword children.
type xisfHeader struct {
	XMLName xml.Name        `xml:"xisf"`
	Image   xisfImageHeader `xml:"Image"`
}

type xisfImageHeader struct {
	Geometry     string           `xml:"geometry,attr"`
	SampleFormat string           `xml:"sampleFormat,attr"`
	Location     string           `xml:"location,attr"`
	FITSKeywords []xisfFITSKeyword `xml:"FITSKeyword"`
}

type xisfFITSKeyword struct {
	Name    string `xml:"name,attr"`
	Value   string `xml:"value,attr"`
	Comment string `xml:"comment,attr"`
}

// ReadXISFHeaders parses only the XML header block and returns the
// keyword map, without touching the attached pixel data.
func ReadXISFHeaders(path string) (Keywords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fitsio: opening %s: %w", path, err)
	}
	defer f.Close()
	kw, _, _, _, err := readXISFHeader(f)
	return kw, err
}

// ReadXISF reads headers and attached pixel data from an XISF file.
func ReadXISF(path string) (*ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fitsio: opening %s: %w", path, err)
	}
	defer f.Close()

	kw, geom, sampleFormat, location, err := readXISFHeader(f)
	if err != nil {
		return nil, err
	}

	offset, length, err := parseXISFLocation(location)
	if err != nil {
		return nil, fmt.Errorf("fitsio: %s: %w", path, err)
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("fitsio: seeking to pixel data in %s: %w", path, err)
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("fitsio: reading pixel data in %s: %w", path, err)
	}

	pixels, err := decodeXISFSamples(raw, sampleFormat)
	if err != nil {
		return nil, fmt.Errorf("fitsio: %s: %w", path, err)
	}

	return &ImageData{
		Width:    geom.width,
		Height:   geom.height,
		Channels: geom.channels,
		Pixels:   pixels,
		Keywords: kw,
	}, nil
}

func readXISFHeader(f *os.File) (Keywords, fitsGeometry, string, string, error) {
	sig := make([]byte, 8)
	if _, err := io.ReadFull(f, sig); err != nil {
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w: %v", ErrTruncatedHeader, err)
	}
	if string(sig) != xisfSignature {
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w: bad signature %q", ErrMalformedHeader, sig)
	}

	var headerLen uint32
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w: %v", ErrTruncatedHeader, err)
	}
	if _, err := io.CopyN(io.Discard, f, 4); err != nil { // reserved
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w: %v", ErrTruncatedHeader, err)
	}

	xmlBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(f, xmlBuf); err != nil {
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w: %v", ErrTruncatedHeader, err)
	}

	var hdr xisfHeader
	if err := xml.Unmarshal(bytes.TrimRight(xmlBuf, "\x00 \t\r\n"), &hdr); err != nil {
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w: %v", ErrMalformedHeader, err)
	}

	geom, err := parseXISFGeometry(hdr.Image.Geometry)
	if err != nil {
		return nil, fitsGeometry{}, "", "", fmt.Errorf("fitsio: %w", err)
	}

	kw := NewKeywords()
	for _, k := range hdr.Image.FITSKeywords {
		kw.Set(k.Name, k.Value)
	}

	return kw, geom, hdr.Image.SampleFormat, hdr.Image.Location, nil
}

func parseXISFGeometry(geometry string) (fitsGeometry, error) {
	parts := strings.Split(geometry, ":")
	if len(parts) < 2 {
		return fitsGeometry{}, fmt.Errorf("%w: geometry %q", ErrBadGeometry, geometry)
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	channels := 1
	if len(parts) >= 3 {
		if c, err := strconv.Atoi(parts[2]); err == nil {
			channels = c
		}
	}
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return fitsGeometry{}, fmt.Errorf("%w: geometry %q", ErrBadGeometry, geometry)
	}
	return fitsGeometry{width: w, height: h, channels: channels}, nil
}

func parseXISFLocation(location string) (offset, length int64, err error) {
	parts := strings.Split(location, ":")
	if len(parts) != 3 || parts[0] != "attachment" {
		return 0, 0, fmt.Errorf("%w: unsupported location %q", ErrUnsupportedFormat, location)
	}
	o, err1 := strconv.ParseInt(parts[1], 10, 64)
	l, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("%w: malformed location %q", ErrMalformedHeader, location)
	}
	return o, l, nil
}

func decodeXISFSamples(raw []byte, sampleFormat string) ([]float64, error) {
	switch sampleFormat {
	case "UInt8":
		out := make([]float64, len(raw))
		for i, b := range raw {
			out[i] = float64(b) / 255.0
		}
		return out, nil
	case "UInt16":
		n := len(raw) / 2
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(raw[i*2:])
			out[i] = float64(v) / 65535.0
		}
		return out, nil
	case "Float32", "":
		n := len(raw) / 4
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			out[i] = float64(math.Float32frombits(bits))
		}
		return out, nil
	case "Float64":
		n := len(raw) / 8
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(raw[i*8:])
			out[i] = math.Float64frombits(bits)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: sampleFormat %q", ErrUnsupportedFormat, sampleFormat)
	}
}

// WriteXISF writes an attached Float32 pixel plane with an XML header that
// faithfully replicates the input keywords (excluding the structural ones
// this function computes). The header offset is a two-pass computation:
// a first XML render at a placeholder offset sizes the padded header, then
// the XML is rebuilt once more with the final offset in case the first
// render's offset digit count changed the padded size.
func WriteXISF(path string, img *ImageData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fitsio: creating %s: %w", path, err)
	}
	defer f.Close()

	raw := encodeXISFSamplesFloat32(img.Pixels)

	xmlBytes, paddedHeaderLen, err := buildXISFHeaderTwoPass(img, len(raw))
	if err != nil {
		return fmt.Errorf("fitsio: building XISF header for %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(xisfSignature); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(xmlBytes))); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, 4)); err != nil { // reserved
		return err
	}
	if _, err := w.Write(xmlBytes); err != nil {
		return err
	}
	pad := paddedHeaderLen - len(xmlBytes)
	if pad > 0 {
		if _, err := w.Write(bytes.Repeat([]byte{0x20}, pad)); err != nil {
			return err
		}
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	return w.Flush()
}

// buildXISFHeaderTwoPass renders the header once to learn the padded
// header size for a placeholder attachment offset, then again with the
// real offset, and a third time only if that offset's own width changed
// the padded length.
func buildXISFHeaderTwoPass(img *ImageData, dataLen int) ([]byte, int, error) {
	render := func(offset int64) ([]byte, int, error) {
		xmlBytes, err := renderXISFXML(img, offset, dataLen)
		if err != nil {
			return nil, 0, err
		}
		total := xisfHeaderStart + len(xmlBytes)
		padded := ((total + xisfPadAlign - 1) / xisfPadAlign) * xisfPadAlign
		return xmlBytes, padded - xisfHeaderStart, nil
	}

	placeholderOffset := int64(xisfHeaderStart + xisfPadAlign)
	_, paddedLen1, err := render(placeholderOffset)
	if err != nil {
		return nil, 0, err
	}
	finalOffset := int64(xisfHeaderStart + paddedLen1)

	xmlBytes2, paddedLen2, err := render(finalOffset)
	if err != nil {
		return nil, 0, err
	}
	if xisfHeaderStart+paddedLen2 != int(finalOffset) {
		// offset width changed the padded size; one more pass converges it
		finalOffset = int64(xisfHeaderStart + paddedLen2)
		xmlBytes2, paddedLen2, err = render(finalOffset)
		if err != nil {
			return nil, 0, err
		}
	}
	return xmlBytes2, paddedLen2, nil
}

func renderXISFXML(img *ImageData, offset int64, dataLen int) ([]byte, error) {
	structural := map[string]bool{
		"NAXIS": true, "NAXIS1": true, "NAXIS2": true, "NAXIS3": true, "BITPIX": true,
		"BZERO": true, "BSCALE": true, "SIMPLE": true,
	}
	hdr := xisfHeader{
		Image: xisfImageHeader{
			Geometry:     fmt.Sprintf("%d:%d:%d", img.Width, img.Height, img.Channels),
			SampleFormat: "Float32",
			Location:     fmt.Sprintf("attachment:%d:%d", offset, dataLen),
		},
	}
	for k, v := range img.Keywords {
		if structural[k] {
			continue
		}
		hdr.Image.FITSKeywords = append(hdr.Image.FITSKeywords, xisfFITSKeyword{
			Name:  k,
			Value: v,
		})
	}
	out, err := xml.MarshalIndent(hdr, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func encodeXISFSamplesFloat32(pixels []float64) []byte {
	buf := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}
