// Package riskscore recomputes the risk score of a contract analysis from
// the issues an external reasoner flagged. Nothing the reasoner says about
// scores is trusted: issues are validated, then folded into five
// category buckets of 20 points each.
package riskscore

import (
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/spf13/cast"
)

type prefixRule struct {
	prefix   rune
	category model.Category
}

// prefixes maps the first letter of a rule identifier to its category.
// The order is the order categories are reported in.
var prefixes = []prefixRule{
	{'F', model.CategoryFinancialTerms},
	{'T', model.CategoryTenantRights},
	{'E', model.CategoryTerminationClauses},
	{'L', model.CategoryLiabilityRepairs},
	{'C', model.CategoryLegalCompliance},
}

// Categories returns the five scoring categories in report order.
func Categories() []model.Category {
	out := make([]model.Category, len(prefixes))
	for i, p := range prefixes {
		out[i] = p.category
	}
	return out
}

// CategoryFor returns the category selected by a rule identifier's first
// letter, case-insensitively.
func CategoryFor(ruleID string) (model.Category, bool) {
	first, _ := utf8.DecodeRuneInString(ruleID)
	if first == utf8.RuneError {
		return "", false
	}
	first = unicode.ToUpper(first)
	for _, p := range prefixes {
		if p.prefix == first {
			return p.category, true
		}
	}
	return "", false
}

// maxPenalty caps a single parsed penalty so sums cannot overflow
const maxPenalty = math.MaxInt32

// decimalInt is an optionally signed decimal integer with digit groups
// separated by single underscores.
var decimalInt = regexp.MustCompile(`^[+-]?[0-9]+(_[0-9]+)*$`)

// ParsePenalty reads an untrusted penalty value. Numbers are truncated
// to int, strings must be base-10 integers, anything else is 0. Results
// are clamped to +/-maxPenalty.
func ParsePenalty(v any) int {
	switch x := v.(type) {
	case string:
		return parseDecimal(x)
	case float64:
		return clampFloat(x)
	case float32:
		return clampFloat(float64(x))
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0
	}
	return int(max(-maxPenalty, min(maxPenalty, n)))
}

func parseDecimal(s string) int {
	s = strings.TrimSpace(s)
	if !decimalInt.MatchString(s) {
		return 0
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	// ParseInt saturates at the int64 bounds on ErrRange.
	return int(max(-maxPenalty, min(maxPenalty, n)))
}

func clampFloat(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= maxPenalty:
		return maxPenalty
	case f <= -maxPenalty:
		return -maxPenalty
	}
	return int(f)
}

// Recalculate returns a copy of result with issues filtered and every
// score derived from the accepted issues. The input is not modified.
func Recalculate(result model.AnalysisResult) model.AnalysisResult {
	out := result
	out.ScoreBreakdown = make(map[model.Category]model.CategoryScore, len(prefixes))

	if !result.IsContract {
		for _, p := range prefixes {
			out.ScoreBreakdown[p.category] = model.CategoryScore{Max: model.CategoryMax}
		}
		out.OverallRiskScore = 0
		return out
	}

	scores := make(map[model.Category]int, len(prefixes))
	penalties := make(map[model.Category]int, len(prefixes))
	for _, p := range prefixes {
		scores[p.category] = model.CategoryMax
	}

	accepted := make([]model.Issue, 0, len(result.Issues))
	for _, issue := range result.Issues {
		penalty := ParsePenalty(issue.PenaltyPoints)
		if issue.RuleID == "" || penalty <= 0 {
			continue
		}

		issue.PenaltyPoints = penalty
		accepted = append(accepted, issue)

		category, ok := CategoryFor(issue.RuleID)
		if !ok {
			continue
		}
		scores[category] = max(0, scores[category]-penalty)
		penalties[category] += penalty
	}

	overall := 0
	for _, p := range prefixes {
		out.ScoreBreakdown[p.category] = model.CategoryScore{
			Score:     scores[p.category],
			Penalties: penalties[p.category],
			Max:       model.CategoryMax,
		}
		overall += scores[p.category]
	}

	out.Issues = accepted
	out.OverallRiskScore = overall

	slog.Debug("risk score recalculated",
		"issues", len(accepted),
		"dropped", len(result.Issues)-len(accepted),
		"overall", overall,
	)
	for _, p := range prefixes {
		slog.Debug("category score",
			"category", p.category,
			"score", scores[p.category],
			"penalties", penalties[p.category],
		)
	}

	return out
}
