package utils

import "strings"

// exchangePrefixes and exchangeSuffixes are stripped from user input so
// "NSE:TATAELXSI" and "tataelxsi.ns" both become "TATAELXSI".
var (
	exchangePrefixes = []string{"NSE:", "BSE:", "$"}
	exchangeSuffixes = []string{".NS", ".BO"}
)

// NormalizeSymbol turns user input into the symbol Screener.in uses in its
// company URLs.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, p := range exchangePrefixes {
		symbol = strings.TrimPrefix(symbol, p)
	}
	for _, s := range exchangeSuffixes {
		symbol = strings.TrimSuffix(symbol, s)
	}
	return strings.TrimSpace(symbol)
}
