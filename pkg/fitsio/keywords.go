package fitsio

import (
	"strconv"
	"strings"

	"github.com/qdm12/reprint"
)

// Keywords holds header keyword values as raw strings, the way both FITS
// cards and XISF FITSKeyword elements present them. Values keep their
// FITS-style quoting stripped but are otherwise untouched; callers coerce
// to the type they need.
type Keywords map[string]string

// NewKeywords creates an empty keyword map.
func NewKeywords() Keywords {
	return make(Keywords)
}

// Clone returns a deep copy, so a writer can add structural keywords
// without mutating the caller's original map.
func (k Keywords) Clone() Keywords {
	if k == nil {
		return NewKeywords()
	}
	out := reprint.This(map[string]string(k)).(map[string]string)
	return Keywords(out)
}

func (k Keywords) GetString(key string) (string, bool) {
	v, ok := k[strings.ToUpper(key)]
	return v, ok
}

func (k Keywords) GetFirstString(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := k.GetString(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (k Keywords) GetFloat(key string) (float64, bool) {
	v, ok := k.GetString(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (k Keywords) GetFirstFloat(keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := k.GetFloat(key); ok {
			return v, true
		}
	}
	return 0, false
}

func (k Keywords) GetInt(key string) (int64, bool) {
	v, ok := k.GetString(key)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil {
			return 0, false
		}
		return int64(f), true
	}
	return i, true
}

func (k Keywords) GetBool(key string) (bool, bool) {
	v, ok := k.GetString(key)
	if !ok {
		return false, false
	}
	switch strings.TrimSpace(strings.ToUpper(v)) {
	case "T", "TRUE":
		return true, true
	case "F", "FALSE":
		return false, true
	default:
		return false, false
	}
}

func (k Keywords) Set(key, value string) {
	k[strings.ToUpper(strings.TrimSpace(key))] = value
}

// stripQuotes trims a FITS string value of its surrounding single quotes
// and trailing whitespace, collapsing doubled quotes per the FITS
// convention for an embedded apostrophe.
func stripQuotes(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = v[1 : len(v)-1]
		v = strings.ReplaceAll(v, "''", "'")
	}
	return strings.TrimRight(v, " ")
}
