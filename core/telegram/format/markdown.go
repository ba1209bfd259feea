// Package format escapes text for Telegram parse modes.
package format

import (
	"fmt"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram legacy Markdown.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram MarkdownV2.
	MarkdownV2 = 2
)

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile(`([\\_*\[\]()~` + "`" + `>#+=|{}.!-])`)
)

// EscapeMarkdown escapes special characters for the given Markdown version.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("format: unsupported markdown version %d", version)
}

// MDV2 escapes text for MarkdownV2.
func MDV2(text string) string {
	return mdV2Re.ReplaceAllString(text, `\$1`)
}
