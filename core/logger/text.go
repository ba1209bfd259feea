package logger

import (
	"strings"
	"time"
	"unicode"
)

// Sanitize drops control and format runes except newline and tab.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n', r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most limit runes.
func SanitizeLimit(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = Sanitize(s)
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// RoundMS rounds d to whole milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	limit = max(limit, 0)
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
