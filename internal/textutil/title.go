package textutil

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CleanTitle normalizes an extracted title: control characters are dropped
// and runs of whitespace collapse to single spaces.
func CleanTitle(title string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range title {
		switch {
		case unicode.IsControl(r):
		case unicode.IsSpace(r):
			if !prevSpace && b.Len() > 0 {
				b.WriteRune(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// TitleFromURL derives a readable title from the last path segment of a
// URL, for items where neither extraction nor summarization produced one.
func TitleFromURL(rawURL string) string {
	segment := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		trimmed := strings.Trim(parsed.Path, "/")
		if trimmed != "" {
			parts := strings.Split(trimmed, "/")
			segment = parts[len(parts)-1]
		} else {
			segment = parsed.Hostname()
		}
	}
	if idx := strings.LastIndex(segment, "."); idx > 0 {
		segment = segment[:idx]
	}

	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range segment {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled"
	}
	return cases.Title(language.Und).String(title)
}

// Truncate shortens a string to max runes, appending an ellipsis when
// anything was cut. Used for table display.
func Truncate(value string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
