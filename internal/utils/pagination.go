// Package utils holds query-parameter helpers shared by the list and search
// endpoints.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is blank or not a
// number. Surrounding whitespace is ignored.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// QueryInt parses a query value with a default and clamps it to [lo, hi].
func QueryInt(s string, def, lo, hi int) int {
	return Clamp(AtoiDefault(s, def), lo, hi)
}
