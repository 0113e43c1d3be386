package textutil

import "strings"

// SanitizeFileName makes a name safe for the filesystem. Path separators,
// colons, and asterisks become dashes; quoting and glob characters are
// dropped; surrounding whitespace is trimmed.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		default:
			return r
		}
	}, name)
	return strings.TrimSpace(cleaned)
}
