package sanitizer

import (
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// minClauseLen is the length a fragment must exceed to count as a clause.
// Shorter fragments are page numbers, stray headers and OCR debris.
const minClauseLen = 15

// SplitClauses segments cleaned contract text into clauses in document
// order. Lines are first grouped under section headers and numbered or
// lettered clause openers, then clauses that the OCR glued together on
// one line are split apart again.
func SplitClauses(text string) []string {
	out := []string{}
	for _, clause := range groupLines(text) {
		for _, fragment := range splitInline(clause) {
			fragment = strings.Join(strings.Fields(fragment), " ")
			if fragment == "" || matches(noWordContent, fragment) {
				continue
			}
			out = append(out, fragment)
		}
	}
	return out
}

func groupLines(text string) []string {
	var clauses []string
	current := ""

	flush := func() {
		if trimmed := strings.TrimSpace(current); longEnough(trimmed) {
			clauses = append(clauses, trimmed)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case startsClause(line):
			flush()
			current = line
		case current != "":
			current += " " + line
		default:
			current = line
		}
	}
	flush()

	return clauses
}

func startsClause(line string) bool {
	for _, header := range sectionHeaders {
		if strings.Contains(line, header) {
			return true
		}
	}
	return matches(clauseOpener, line)
}

// splitInline cuts a clause before every mid-line clause number. The
// cut drops one whitespace character, so the number stays at the head
// of the next fragment.
func splitInline(clause string) []string {
	runes := []rune(clause)

	m, err := inlineClause.FindRunesMatch(runes)
	if err != nil || m == nil {
		if longEnough(clause) {
			return []string{clause}
		}
		return nil
	}

	var parts []string
	prev := 0
	for m != nil {
		if sub := strings.TrimSpace(string(runes[prev:m.Index])); longEnough(sub) {
			parts = append(parts, sub)
		}
		prev = m.Index + 1
		if m, err = inlineClause.FindNextMatch(m); err != nil {
			break
		}
	}
	if last := strings.TrimSpace(string(runes[prev:])); longEnough(last) {
		parts = append(parts, last)
	}
	return parts
}

func longEnough(s string) bool {
	return utf8.RuneCountInString(s) > minClauseLen
}

// matches treats a regexp2 failure (only a match timeout) as no match.
func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}
