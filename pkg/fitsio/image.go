package fitsio

// ImageData is an in-memory pixel plane plus the keywords preserved from
// the file it was read from (or destined for the file it will be written
// to). Pixels are always float64, row-major, one dense buffer covering
// all channels: index = (y*Width+x)*Channels + c.
type ImageData struct {
	Width    int
	Height   int
	Channels int
	Pixels   []float64
	Keywords Keywords
}

// NewImageData allocates a zeroed plane of the given geometry.
func NewImageData(width, height, channels int) *ImageData {
	if channels < 1 {
		channels = 1
	}
	return &ImageData{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pixels:   make([]float64, width*height*channels),
		Keywords: NewKeywords(),
	}
}

// NumPixels returns the number of scalar samples in the plane
// (Width*Height*Channels).
func (img *ImageData) NumPixels() int {
	return img.Width * img.Height * img.Channels
}

// SameGeometry reports whether two images share width, height and channel
// count — the check the integration engine runs before subtracting a dark.
func (img *ImageData) SameGeometry(other *ImageData) bool {
	return img.Width == other.Width && img.Height == other.Height && img.Channels == other.Channels
}

// Clone returns a deep copy of the pixel buffer and keyword map, leaving
// the original untouched.
func (img *ImageData) Clone() *ImageData {
	out := &ImageData{
		Width:    img.Width,
		Height:   img.Height,
		Channels: img.Channels,
		Pixels:   make([]float64, len(img.Pixels)),
		Keywords: img.Keywords.Clone(),
	}
	copy(out.Pixels, img.Pixels)
	return out
}
