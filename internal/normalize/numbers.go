// Package normalize converts raw scraped text into typed FirmLens records.
// Conversion happens exactly once, at this boundary; any value that breaks a
// hard parsing contract fails the whole run with ErrMalformed.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformed reports upstream data that violates a parsing contract.
var ErrMalformed = errors.New("normalize: malformed upstream data")

var intRun = regexp.MustCompile(`-?\d+`)

// CleanNumber strips thousands separators and returns the first signed
// integer run in s. It returns nil when s holds no digits.
func CleanNumber(s string) *int64 {
	s = strings.ReplaceAll(s, ",", "")
	m := intRun.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// CleanFloat strips thousands separators and parses s as a float. Empty
// input yields nil.
func CleanFloat(s string) (*float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: float %q", ErrMalformed, s)
	}
	return &f, nil
}

// CleanPercent strips a percent sign, parses the rest as a float and
// truncates it toward zero. "15.7%" yields 15.
func CleanPercent(s string) (*int64, error) {
	s = strings.TrimSpace(strings.NewReplacer("%", "", ",", "").Replace(s))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: percent %q", ErrMalformed, s)
	}
	n := int64(f)
	return &n, nil
}

// text trims s and returns nil when nothing is left.
func text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
