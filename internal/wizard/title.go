package wizard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	titleSnippetRunes = 40
	titleMaxRunes     = 120
)

// GenerateTitle derives a project title from the captured fields, for example
// "Plumbing: fix leaking tap (remote, 7 days, 2 taps)".
func GenerateTitle(s *Session) string {
	head := s.categoryName(s.CategoryID)
	if head == "" {
		head = "Project"
	}
	if snippet := snippet(s.Description, titleSnippetRunes); snippet != "" {
		head += ": " + snippet
	}

	var extras []string
	if l := locationLabel(s.LocationKind); l != "" {
		extras = append(extras, l)
	}
	if s.DeadlineDays > 0 {
		extras = append(extras, fmt.Sprintf("%d days", s.DeadlineDays))
	}
	if q := strings.TrimSpace(s.QuantityLabel); q != "" {
		extras = append(extras, q)
	}
	if len(extras) > 0 {
		head += " (" + strings.Join(extras, ", ") + ")"
	}
	return truncateRunes(head, titleMaxRunes)
}

// snippet returns the first words of s that fit in limit runes, on one line.
func snippet(s string, limit int) string {
	words := strings.Fields(s)
	var b strings.Builder
	for _, w := range words {
		n := utf8.RuneCountInString(b.String())
		add := utf8.RuneCountInString(w)
		if n > 0 {
			add++
		}
		if n+add > limit {
			if n == 0 {
				return truncateRunes(w, limit)
			}
			return b.String() + "…"
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
