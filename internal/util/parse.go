package util

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseLocaleNumber parses a pt-BR formatted number ("1.234,56") where "." groups
// thousands and "," separates decimals. It reports false for empty input and
// for anything that is not a finite, non-negative number.
func ParseLocaleNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
