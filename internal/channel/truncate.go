package channel

import "unicode/utf8"

// TruncateWithEllipsis shortens s to at most max runes, appending an
// ellipsis when anything was cut. Truncation never splits a rune.
func TruncateWithEllipsis(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
