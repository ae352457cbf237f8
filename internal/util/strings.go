package util

import "strings"

// DefaultString returns fallback if v is empty or whitespace-only, otherwise v.
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash renders a visible "-" placeholder for optional table cells,
// such as the PID column of a stopped tunnel.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}
