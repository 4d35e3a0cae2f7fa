// Package util provides common utility functions used across the tracker.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs normalizes raw host arguments in place and returns them.
func CleanArgs(data []string) []string {
	for i, v := range data {
		data[i] = FixEscapeQuotes(TrimQuotes(strings.TrimSpace(v)))
	}
	return data
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
