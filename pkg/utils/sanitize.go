package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// sanitize.go - Input sanitization for user-generated chat content

var (
	htmlTag        = regexp.MustCompile(`<[^>]*>`)
	blankLineRun   = regexp.MustCompile(`\n{3,}`)
	maxMessageBody = 4000
)

// EscapeSQLWildcards escapes SQL LIKE/ILIKE wildcard characters
func EscapeSQLWildcards(input string) string {
	// Escape backslash first (as it's the escape character)
	input = strings.ReplaceAll(input, "\\", "\\\\")
	input = strings.ReplaceAll(input, "%", "\\%")
	input = strings.ReplaceAll(input, "_", "\\_")
	return input
}

// StripHTML removes all HTML tags from a string
func StripHTML(input string) string {
	return htmlTag.ReplaceAllString(input, "")
}

// SanitizeMessageBody trims a message body, drops control characters other than
// newlines and tabs, strips markup and collapses runs of blank lines.
// Bodies are rendered as plain text by the apps, so entities are not escaped.
func SanitizeMessageBody(input string) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	input = StripHTML(input)
	input = blankLineRun.ReplaceAllString(input, "\n\n")
	input = strings.TrimSpace(input)
	return TruncateString(input, maxMessageBody)
}

// SanitizeSearchQuery trims and bounds a free-text search term
func SanitizeSearchQuery(input string) string {
	input = strings.TrimSpace(input)
	// Limit length to prevent DoS
	return TruncateString(input, 100)
}

// TruncateString truncates s to at most maxLen runes
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
