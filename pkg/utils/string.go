package utils

import "strings"

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
// Newlines are flattened to spaces so the result fits on one line.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
