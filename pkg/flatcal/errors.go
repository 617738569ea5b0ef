// Package flatcal wires the scanner, dark matcher and integration engine
// into a single entry point, collecting progress events and a summary
// report for a caller to consume.
package flatcal

import "errors"

// Sentinel errors returned (wrapped) by Run and its collaborators.
var (
	ErrNotFound       = errors.New("flatcal: path not found")
	ErrAccessDenied   = errors.New("flatcal: access denied")
	ErrNoMatchingDark = errors.New("flatcal: no matching dark or bias found")
	ErrCancelled      = errors.New("flatcal: run cancelled")
	ErrInternal       = errors.New("flatcal: internal error")
)
