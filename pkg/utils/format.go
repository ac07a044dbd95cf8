// Package utils provides small display helpers shared by the FirmLens CLI.
package utils

import (
	"strconv"
)

// Missing is shown in place of an absent value.
const Missing = "—"

// FormatCrores formats an amount in ₹ crore with Indian digit grouping,
// e.g. 123456 → "₹1,23,456 Cr". Nil renders as Missing.
func FormatCrores(v *int64) string {
	if v == nil {
		return Missing
	}
	return FormatRupees(*v) + " Cr"
}

// FormatRupees formats a whole rupee amount with Indian digit grouping:
// the last three digits, then groups of two.
func FormatRupees(n int64) string {
	if n < 0 {
		return "-₹" + formatIndianNumber(uint64(-n))
	}
	return "₹" + formatIndianNumber(uint64(n))
}

// FormatPrice is FormatRupees for an optional value.
func FormatPrice(v *int64) string {
	if v == nil {
		return Missing
	}
	return FormatRupees(*v)
}

func formatIndianNumber(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}

	result := s[len(s)-3:]
	remaining := s[:len(s)-3]
	for len(remaining) > 2 {
		result = remaining[len(remaining)-2:] + "," + result
		remaining = remaining[:len(remaining)-2]
	}
	return remaining + "," + result
}
