package sanitizer

import (
	"log/slog"
	"strings"
)

// FixDirection mirrors every line when the text looks like it was
// emitted right-to-left backwards by the scanner. It reports whether the
// text was mirrored. Ties leave the text alone.
func FixDirection(text string) (string, bool) {
	normal := countPresent(text, normalKeywords)
	reversed := countPresent(text, reversedKeywords)

	if reversed <= normal {
		return text, false
	}

	slog.Debug("reversed text detected", "reversed_score", reversed, "normal_score", normal)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = reverseRunes(line)
	}
	return strings.Join(lines, "\n"), true
}

// countPresent counts how many of the keywords occur at least once.
func countPresent(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func reverseRunes(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
