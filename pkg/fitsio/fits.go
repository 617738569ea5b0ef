package fitsio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	fitsBlockSize  = 2880
	fitsCardSize   = 80
	fitsCardsPerBlock = fitsBlockSize / fitsCardSize
)

// ReadFITSHeaders reads only the header blocks of a FITS file, stopping at
// the END card, and returns the accumulated keyword map.
func ReadFITSHeaders(path string) (Keywords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fitsio: opening %s: %w", path, err)
	}
	defer f.Close()
	kw, _, _, err := readFITSHeader(bufio.NewReader(f))
	return kw, err
}

// ReadFITS reads headers and pixel data from a FITS file.
func ReadFITS(path string) (*ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fitsio: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	kw, geom, dtype, err := readFITSHeader(r)
	if err != nil {
		return nil, err
	}

	numPixels := geom.width * geom.height * geom.channels
	pixels := make([]float64, numPixels)
	if err := readFITSPixels(r, pixels, dtype); err != nil {
		return nil, fmt.Errorf("fitsio: reading %s: %w", path, err)
	}

	return &ImageData{
		Width:    geom.width,
		Height:   geom.height,
		Channels: geom.channels,
		Pixels:   pixels,
		Keywords: kw,
	}, nil
}

type fitsGeometry struct {
	width, height, channels int
}

type fitsSampleType struct {
	bitpix        int
	bzero, bscale float64
}

// readFITSHeader consumes 2880-byte blocks of 80-byte cards until END,
// tracking the fields the codec needs (NAXIS*, BITPIX, BZERO, BSCALE)
// while preserving every parsed card in the returned keyword map.
func readFITSHeader(r *bufio.Reader) (Keywords, fitsGeometry, fitsSampleType, error) {
	kw := NewKeywords()
	dtype := fitsSampleType{bscale: 1.0}
	var naxis, naxis1, naxis2, naxis3 int
	naxis3 = 1

	card := make([]byte, fitsCardSize)
	done := false
	for !done {
		for i := 0; i < fitsCardsPerBlock; i++ {
			if _, err := io.ReadFull(r, card); err != nil {
				return nil, fitsGeometry{}, fitsSampleType{}, fmt.Errorf("fitsio: %w: %v", ErrTruncatedHeader, err)
			}
			line := string(card)
			key := strings.TrimSpace(line[:8])
			if key == "END" {
				done = true
				continue
			}
			if done {
				continue // padding after END within the same block
			}
			if len(line) < 10 || line[8] != '=' {
				continue // comment/history/blank card: not fatal
			}
			rest := line[9:]
			value := rest
			if slash := strings.Index(rest, "/"); slash >= 0 {
				value = rest[:slash]
			}
			value = stripQuotes(value)
			if key == "" {
				continue
			}
			kw.Set(key, value)

			switch key {
			case "BITPIX":
				dtype.bitpix, _ = strconv.Atoi(strings.TrimSpace(value))
			case "NAXIS":
				naxis, _ = strconv.Atoi(strings.TrimSpace(value))
			case "NAXIS1":
				naxis1, _ = strconv.Atoi(strings.TrimSpace(value))
			case "NAXIS2":
				naxis2, _ = strconv.Atoi(strings.TrimSpace(value))
			case "NAXIS3":
				naxis3, _ = strconv.Atoi(strings.TrimSpace(value))
			case "BZERO":
				dtype.bzero, _ = strconv.ParseFloat(strings.TrimSpace(value), 64)
			case "BSCALE":
				dtype.bscale, _ = strconv.ParseFloat(strings.TrimSpace(value), 64)
			}
		}
	}

	if naxis < 2 || naxis1 <= 0 || naxis2 <= 0 {
		return nil, fitsGeometry{}, fitsSampleType{}, fmt.Errorf("fitsio: %w: NAXIS=%d NAXIS1=%d NAXIS2=%d", ErrBadGeometry, naxis, naxis1, naxis2)
	}
	channels := 1
	if naxis >= 3 && naxis3 > 0 {
		channels = naxis3
	}

	return kw, fitsGeometry{width: naxis1, height: naxis2, channels: channels}, dtype, nil
}

func readFITSPixels(r io.Reader, out []float64, dtype fitsSampleType) error {
	n := len(out)
	switch dtype.bitpix {
	case 8:
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			v := float64(buf[i])*dtype.bscale + dtype.bzero
			out[i] = v / 255.0
		}
	case 16:
		buf := make([]byte, n*2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			raw := int16(binary.BigEndian.Uint16(buf[i*2:]))
			v := float64(raw)*dtype.bscale + dtype.bzero
			out[i] = v / 65535.0
		}
	case 32:
		buf := make([]byte, n*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			raw := int32(binary.BigEndian.Uint32(buf[i*4:]))
			out[i] = float64(raw)*dtype.bscale + dtype.bzero
		}
	case -32:
		buf := make([]byte, n*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			bits := binary.BigEndian.Uint32(buf[i*4:])
			v := float64(math.Float32frombits(bits))
			out[i] = v*dtype.bscale + dtype.bzero
		}
	case -64:
		buf := make([]byte, n*8)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			bits := binary.BigEndian.Uint64(buf[i*8:])
			v := math.Float64frombits(bits)
			out[i] = v*dtype.bscale + dtype.bzero
		}
	default:
		return fmt.Errorf("%w: BITPIX=%d", ErrUnsupportedFormat, dtype.bitpix)
	}
	return nil
}

// WriteFITS writes a primary HDU with BITPIX=-32, big-endian, padded to a
// 2880-byte boundary. Keywords are copied verbatim except the structural
// ones this function computes itself (SIMPLE, BITPIX, NAXIS*, BZERO,
// BSCALE, END).
func WriteFITS(path string, img *ImageData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fitsio: creating %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	cards := buildFITSCards(img)
	for _, c := range cards {
		if _, err := w.WriteString(c); err != nil {
			return err
		}
	}
	// pad header to a block boundary
	pad := (fitsCardsPerBlock - len(cards)%fitsCardsPerBlock) % fitsCardsPerBlock
	for i := 0; i < pad; i++ {
		if _, err := w.WriteString(strings.Repeat(" ", fitsCardSize)); err != nil {
			return err
		}
	}

	n := img.NumPixels()
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(float32(img.Pixels[i])))
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	dataPad := (fitsBlockSize - len(buf)%fitsBlockSize) % fitsBlockSize
	if dataPad > 0 {
		if _, err := w.Write(make([]byte, dataPad)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func buildFITSCards(img *ImageData) []string {
	cards := []string{
		fitsCard("SIMPLE", "T", "conforms to FITS standard"),
		fitsCard("BITPIX", "-32", "32-bit float pixels"),
		fitsCard("NAXIS", "3", "number of axes"),
		fitsCard("NAXIS1", strconv.Itoa(img.Width), ""),
		fitsCard("NAXIS2", strconv.Itoa(img.Height), ""),
		fitsCard("NAXIS3", strconv.Itoa(img.Channels), ""),
		fitsCard("BZERO", "0", ""),
		fitsCard("BSCALE", "1", ""),
	}
	structural := map[string]bool{
		"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true,
		"NAXIS2": true, "NAXIS3": true, "BZERO": true, "BSCALE": true,
	}
	for k, v := range img.Keywords {
		if structural[k] {
			continue
		}
		cards = append(cards, fitsCard(k, v, ""))
	}
	cards = append(cards, "END"+strings.Repeat(" ", fitsCardSize-3))
	return cards
}

func fitsCard(key, value, comment string) string {
	line := fmt.Sprintf("%-8s= %s", key, formatFITSValue(value))
	if comment != "" {
		line += " / " + comment
	}
	if len(line) > fitsCardSize {
		line = line[:fitsCardSize]
	}
	return line + strings.Repeat(" ", fitsCardSize-len(line))
}

func formatFITSValue(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	if v == "T" || v == "F" {
		return v
	}
	escaped := strings.ReplaceAll(v, "'", "''")
	return "'" + escaped + "'"
}
