package util

import "unicode/utf8"

// TruncateString cuts s down to at most max bytes without splitting a UTF-8
// rune, backing the cut point up to the nearest rune boundary. The second
// return reports whether anything was cut. A non-positive max returns s
// unchanged.
func TruncateString(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max], true
}
