package sanitizer

import "strings"

// CleanNoise strips scanner watermarks and OCR artifacts, collapses
// horizontal whitespace and runs of blank lines, and trims the result.
func CleanNoise(text string) string {
	for _, pattern := range noisePatterns {
		text = pattern.ReplaceAllLiteralString(text, " ")
	}

	text = horizontalSpace.ReplaceAllLiteralString(text, " ")
	text = blankLineRun.ReplaceAllLiteralString(text, "\n\n")
	return strings.TrimSpace(text)
}
