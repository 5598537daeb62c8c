package exporter

import (
	"strconv"
	"strings"
)

// numericColumns flags the count and channel columns of a table header
func numericColumns(header []string) []bool {
	numeric := make([]bool, len(header))
	for i, name := range header {
		numeric[i] = name == "spectral_count" || name == "sequence_count" || strings.HasPrefix(name, "channel_")
	}
	return numeric
}

// cellValue converts a stringified field into the value stored in a
// spreadsheet cell: unsigned integers and decimals become numbers,
// everything else stays text.
func cellValue(s string) interface{} {
	if s == "" {
		return s
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// isDecimal accepts plain digits with at most one decimal point
func isDecimal(s string) bool {
	dot := false
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}
