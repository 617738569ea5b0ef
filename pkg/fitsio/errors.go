package fitsio

import "errors"

// Sentinel errors for the codec layer. Wrap with fmt.Errorf("...: %w", ErrX)
// so callers can still errors.Is against the underlying condition.
var (
	ErrTruncatedHeader  = errors.New("fitsio: truncated header")
	ErrUnsupportedFormat = errors.New("fitsio: unsupported sample format")
	ErrBadGeometry      = errors.New("fitsio: image geometry mismatch")
	ErrMalformedHeader  = errors.New("fitsio: malformed header card")
)
