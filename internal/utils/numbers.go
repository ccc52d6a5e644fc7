// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"math"
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

var spaceStripper = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

// ParseLooseFloat parses spreadsheet-style numbers: thousands separated by
// spaces or non-breaking spaces, a decimal comma, and "nan" for empty cells.
func ParseLooseFloat(s string) (float64, bool) {
	s = spaceStripper.Replace(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// LooseFloat is ParseLooseFloat with 0 for unparsable input.
func LooseFloat(s string) float64 {
	f, _ := ParseLooseFloat(s)
	return f
}

// LooseInt truncates a loose number toward zero.
func LooseInt(s string) int64 {
	return int64(LooseFloat(s))
}

// Round2 rounds half away from zero to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// FormatNumber prints f without trailing zeros ("1500", "12.5").
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Money renders a loose amount rounded to kopecks; unparsable input is "0".
func Money(s string) string {
	return FormatNumber(Round2(LooseFloat(s)))
}

// Percent renders a percentage. Values written without "%" and within
// [-1, 1] are read as fractions. Unparsable input is returned trimmed, and
// blank or placeholder input yields "".
func Percent(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "none", "-", "—":
		return ""
	}
	hasPct := strings.HasSuffix(s, "%")
	f, ok := ParseLooseFloat(strings.TrimSuffix(s, "%"))
	if !ok {
		return s
	}
	if !hasPct && math.Abs(f) <= 1 {
		f *= 100
	}
	return FormatNumber(Round2(f)) + "%"
}
