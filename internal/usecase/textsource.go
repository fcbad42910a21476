package usecase

import "strings"

// FirstNonEmpty returns the first candidate holding non-blank text.
// Candidates are ordered by priority: extracted page text, then the description.
func FirstNonEmpty(candidates ...*string) (string, bool) {
	for _, c := range candidates {
		if c != nil && strings.TrimSpace(*c) != "" {
			return *c, true
		}
	}
	return "", false
}
