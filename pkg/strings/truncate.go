// Package strings holds small text helpers shared by the renderers.
package strings

import (
	"strings"
)

// DefaultNameMaxLen caps report names in tabular output.
const DefaultNameMaxLen = 32

// minTruncateLen leaves room for one character plus the ellipsis.
const minTruncateLen = 4

// Truncate collapses whitespace to single spaces and shortens s to at most
// maxLen runes, marking a cut with "...". maxLen below 4 is raised to 4.
func Truncate(s string, maxLen int) string {
	maxLen = max(maxLen, minTruncateLen)

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
