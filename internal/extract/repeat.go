package extract

import (
	"strings"
	"unicode"
)

// CollapseRepetition returns the first copy when s is nothing but a prefix
// repeated two or more times, optionally separated by whitespace. Some
// clients echo the visible reply once per MIME part. Text that merely
// looks similar is returned unchanged.
func CollapseRepetition(s string) string {
	s = strings.TrimSpace(s)
	for length := 1; length <= len(s)/2; length++ {
		unit := s[:length]
		if strings.TrimSpace(unit) != unit {
			continue
		}
		if repeats(s, unit) {
			return unit
		}
	}
	return s
}

func repeats(s, unit string) bool {
	rest := s[len(unit):]
	copies := 1
	for rest != "" {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if !strings.HasPrefix(rest, unit) {
			return false
		}
		rest = rest[len(unit):]
		copies++
	}
	return copies >= 2
}
