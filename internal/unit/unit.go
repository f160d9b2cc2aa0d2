// Package unit normalizes the human formatted numbers that Chinese market
// data sources publish ("1.5亿", "23万", "3.25%", "--") into float64 values.
//
// Every parser returns nil for a missing value instead of an error so that
// a single blank cell never rejects a whole record.
package unit

import (
	"math"
	"strconv"
	"strings"
)

const (
	yi  = 1e8
	wan = 1e4
)

// missing reports whether s is one of the placeholders providers use for
// an absent value.
func missing(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "-", "--", "none", "null", "false":
		return true
	}
	return false
}

// ParseAmount parses an amount with an optional 亿 or 万 suffix.
func ParseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	if missing(s) {
		return nil
	}
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "亿"):
		scale = yi
		s = strings.TrimSuffix(s, "亿")
	case strings.HasSuffix(s, "万"):
		scale = wan
		s = strings.TrimSuffix(s, "万")
	}
	s = strings.TrimSpace(s)
	if v := ParseFloat(s); v != nil {
		*v *= scale
		return v
	}
	num := numericPrefix(s)
	if num == "" {
		return nil
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	v *= scale
	return &v
}

// ParsePercent strips a trailing % and parses the rest. The value is kept
// on the percent scale, so "3.25%" is 3.25.
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return ParseFloat(s)
}

// ParseFloat parses a plain decimal.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if missing(s) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseInt parses an integer, tolerating a ".0" float rendering.
func ParseInt(s string) *int64 {
	f := ParseFloat(s)
	if f == nil {
		return nil
	}
	v := int64(math.Round(*f))
	return &v
}

// numericPrefix returns the leading signed decimal of s, with thousands
// separators removed.
func numericPrefix(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	end := 0
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			end = i + 1
		case (r == '-' || r == '+') && i == 0:
		case r == '.' && !dot:
			dot = true
		default:
			return trimNumber(s[:end])
		}
	}
	return trimNumber(s[:end])
}

func trimNumber(s string) string {
	if s == "" || s == "-" || s == "+" {
		return ""
	}
	return s
}

// Float64 returns a pointer to v. Handy for tests and literal records.
func Float64(v float64) *float64 {
	return &v
}

// Value dereferences p, returning 0 when p is nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
