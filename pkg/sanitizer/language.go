package sanitizer

import "unicode/utf8"

// Language is the verdict of the script gate run before analysis.
type Language string

const (
	LanguageSupported   Language = "supported"
	LanguageUnsupported Language = "unsupported"
	LanguageUnknown     Language = "unknown"
)

const (
	minLanguageSample = 100
	languageSample    = 2000
	// More than this share of letters outside Hebrew and Latin means the
	// document is in a script the analysis cannot handle.
	maxForeignRatio = 0.3
)

// DetectLanguage decides whether text is mostly Hebrew and/or English.
func DetectLanguage(text string) Language {
	if utf8.RuneCountInString(text) < minLanguageSample {
		return LanguageUnknown
	}

	var hebrew, latin, other, seen int
	for _, r := range text {
		if seen == languageSample {
			break
		}
		seen++

		switch {
		case isHebrew(r):
			hebrew++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		case r > 127:
			other++
		}
	}

	total := hebrew + latin + other
	if total == 0 {
		return LanguageUnknown
	}
	if float64(other)/float64(total) > maxForeignRatio {
		return LanguageUnsupported
	}
	return LanguageSupported
}

func isHebrew(r rune) bool {
	return r >= 0x0590 && r <= 0x05FF
}

// Truncate cuts text to at most max runes and marks the cut.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "... [Truncated]"
}
