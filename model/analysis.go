package model

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cast"
)

// Category is one of the five fixed scoring buckets
type Category string

const (
	CategoryFinancialTerms     Category = "financial_terms"
	CategoryTenantRights       Category = "tenant_rights"
	CategoryTerminationClauses Category = "termination_clauses"
	CategoryLiabilityRepairs   Category = "liability_repairs"
	CategoryLegalCompliance    Category = "legal_compliance"
)

// CategoryMax is the starting score of every category
const CategoryMax = 20

// Issue is a single problem flagged by the external reasoner.
// PenaltyPoints is kept as the raw decoded value because the reasoner
// may send a number, a numeric string, null or garbage.
type Issue struct {
	RuleID        string `json:"rule_id" jsonschema_description:"Rule identifier from the catalog, e.g. F1, T3, C99"`
	ClauseTopic   string `json:"clause_topic,omitempty" jsonschema_description:"Topic of the offending clause"`
	OriginalText  string `json:"original_text,omitempty" jsonschema_description:"Exact quote from the contract"`
	RiskLevel     string `json:"risk_level,omitempty" jsonschema:"enum=High,enum=Medium,enum=Low"`
	PenaltyPoints any    `json:"penalty_points" jsonschema:"type=integer,minimum=2,maximum=10"`
	LegalBasis    string `json:"legal_basis,omitempty" jsonschema_description:"Statute section the rule is based on"`
	Explanation   string `json:"explanation,omitempty"`
	SuggestedFix  string `json:"suggested_fix,omitempty" jsonschema_description:"Full corrected wording of the clause"`
}

// CategoryScore is the state of one category after recalculation.
// Penalties is the raw sum and may exceed Max even though Score floors at 0.
type CategoryScore struct {
	Score     int `json:"score"`
	Penalties int `json:"penalties"`
	Max       int `json:"max"`
}

// AnalysisResult is the report for one document analysis pass
type AnalysisResult struct {
	IsContract       bool                       `json:"is_contract"`
	Summary          string                     `json:"summary"`
	Issues           []Issue                    `json:"issues"`
	ScoreBreakdown   map[Category]CategoryScore `json:"score_breakdown,omitempty" jsonschema:"-"`
	OverallRiskScore int                        `json:"overall_risk_score" jsonschema:"-"`
	ParseError       string                     `json:"parse_error,omitempty" jsonschema:"-"`
}

// UnmarshalJSON reads a report from an untrusted reasoner. A missing
// is_contract means true, while an explicit value counts by JSON
// truthiness, so null, false, 0 and "" all mean not a contract. Fields of
// the wrong type are read leniently or left empty, and issue entries that
// are not objects are dropped without failing the rest of the report.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = AnalysisResult{IsContract: true, Issues: []Issue{}}

	if raw, ok := fields["is_contract"]; ok {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			r.IsContract = truthy(v)
		}
	}
	r.Summary = lenientString(fields["summary"])
	r.ParseError = lenientString(fields["parse_error"])

	var issues []json.RawMessage
	if err := json.Unmarshal(fields["issues"], &issues); err == nil {
		for _, raw := range issues {
			var issue Issue
			if err := json.Unmarshal(raw, &issue); err != nil {
				continue
			}
			r.Issues = append(r.Issues, issue)
		}
	}

	// Scores are recalculated downstream; unreadable ones are ignored.
	_ = json.Unmarshal(fields["score_breakdown"], &r.ScoreBreakdown)
	var overall any
	if err := json.Unmarshal(fields["overall_risk_score"], &overall); err == nil {
		r.OverallRiskScore, _ = cast.ToIntE(overall)
	}
	return nil
}

// UnmarshalJSON accepts any JSON object. Text fields holding numbers or
// booleans are converted to strings; other shapes leave the field empty.
// PenaltyPoints keeps the raw value.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("issue is null")
	}

	*i = Issue{
		RuleID:       lenientString(fields["rule_id"]),
		ClauseTopic:  lenientString(fields["clause_topic"]),
		OriginalText: lenientString(fields["original_text"]),
		RiskLevel:    lenientString(fields["risk_level"]),
		LegalBasis:   lenientString(fields["legal_basis"]),
		Explanation:  lenientString(fields["explanation"]),
		SuggestedFix: lenientString(fields["suggested_fix"]),
	}
	if raw, ok := fields["penalty_points"]; ok {
		_ = json.Unmarshal(raw, &i.PenaltyPoints)
	}
	return nil
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	s, _ := cast.ToStringE(v)
	return s
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}
