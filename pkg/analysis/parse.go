// Package analysis handles the raw output of the external contract
// reasoner: pulling a JSON report out of free text, falling back to a
// neutral report when that fails, and describing the rule catalog and
// the output schema the reasoner is asked to follow.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/pkg/riskscore"
)

const (
	DefaultSummary  = "הניתוח הושלם."
	FallbackSummary = "הניתוח הושלם אך יש שגיאת פורמט."
	fallbackScore   = 10
)

// ErrNoJSON is returned when the reasoner output holds no JSON object.
var ErrNoJSON = errors.New("no JSON object found")

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)

// ParseOutput extracts the analysis report from reasoner output. Code
// fences and text around the outermost JSON object are ignored, and
// line breaks the model left unescaped inside strings are repaired.
func ParseOutput(raw string) (model.AnalysisResult, error) {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return model.AnalysisResult{}, ErrNoJSON
	}

	body := controlChars.ReplaceAllString(text[start:end+1], "")
	body = escapeBreaksInStrings(body)

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if result.Summary == "" {
		result.Summary = DefaultSummary
	}
	return result, nil
}

// Fallback is the report used when the reasoner output cannot be parsed.
func Fallback(err error) model.AnalysisResult {
	breakdown := make(map[model.Category]model.CategoryScore, 5)
	overall := 0
	for _, cat := range riskscore.Categories() {
		breakdown[cat] = model.CategoryScore{Score: fallbackScore, Max: model.CategoryMax}
		overall += fallbackScore
	}

	res := model.AnalysisResult{
		IsContract:       true,
		Summary:          FallbackSummary,
		Issues:           []model.Issue{},
		ScoreBreakdown:   breakdown,
		OverallRiskScore: overall,
	}
	if err != nil {
		res.ParseError = err.Error()
	}
	return res
}

// escapeBreaksInStrings rewrites raw CR, LF and tab characters that sit
// inside JSON string literals as escapes. Whitespace between tokens is
// left alone.
func escapeBreaksInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case escaped:
			escaped = false
			b.WriteByte(c)
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			b.WriteString(`\n`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
