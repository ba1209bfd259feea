package wizard

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// asciiDigit maps Persian (U+06F0..U+06F9) and Arabic-Indic (U+0660..U+0669)
// digits to ASCII and leaves every other rune alone.
func asciiDigit(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	}
	return r
}

// NormalizeDigits rewrites localized digits in s to ASCII.
func NormalizeDigits(s string) string {
	out, _, err := transform.String(runes.Map(asciiDigit), s)
	if err != nil {
		return s
	}
	return out
}

// DigitsOnly normalizes s and drops everything that is not an ASCII digit.
func DigitsOnly(s string) string {
	s = NormalizeDigits(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
