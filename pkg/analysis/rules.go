package analysis

import (
	"strings"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/pkg/riskscore"
)

// Rule is one entry of the rental-law rule catalog the reasoner cites.
type Rule struct {
	ID        string         `json:"rule_id"`
	Category  model.Category `json:"category"`
	Reference string         `json:"reference"`
	Title     string         `json:"title"`
}

// Risk bands the reasoner is told to use for penalty_points.
const (
	PenaltyLowMin    = 2
	PenaltyLowMax    = 3
	PenaltyMediumMin = 4
	PenaltyMediumMax = 6
	PenaltyHighMin   = 8
	PenaltyHighMax   = 10
)

// Israeli rental law, 2017 amendment sections 25a-25o and the 1971 act.
var rules = []Rule{
	{ID: "F1", Reference: "25י(ב)", Title: "ערובה מקסימלית: הנמוך מבין 3 חודשים או שליש מתקופת השכירות"},
	{ID: "F2", Reference: "25י(ה)", Title: "החזרת ערובה תוך 60 יום מסיום השכירות"},
	{ID: "F3", Reference: "25ט(א)", Title: "דמי שכירות חייבים להיות מפורטים"},
	{ID: "F4", Reference: "נהוג", Title: "קנסות איחור: עד 2% לשבוע תקין, מעל 3-4% לשבוע מופרז"},
	{ID: "F5", Reference: "25ט(ב)(3)", Title: "שוכר לא משלם דמי תיווך של המשכיר"},
	{ID: "F6", Reference: "25י(ג)", Title: "ערובה רק עבור שכ\"ד, תיקונים, חובות ואי-פינוי"},
	{ID: "F7", Reference: "25י(ד)", Title: "הודעה לשוכר לפני מימוש ערובה"},

	{ID: "T1", Reference: "סעיף 17", Title: "הודעה 24-48 שעות לפני כניסה לדירה"},
	{ID: "T2", Reference: "סעיף 22", Title: "איסור גורף על סאבלט ללא נימוק"},
	{ID: "T3", Reference: "אסור", Title: "ניתוק חשמל/מים לסילוק שוכר"},
	{ID: "T4", Reference: "סעיף 16א", Title: "שינויים רק בהסכמת המשכיר"},
	{ID: "T5", Reference: "25ה + סעיף 6", Title: "זכויות במקרה אי-התאמה"},
	{ID: "T6", Reference: "25ט(ב)", Title: "שוכר לא משלם ביטוח מבנה, תיווך והשבחות"},
	{ID: "T7", Reference: "25ז(ג)", Title: "הוראות תחזוקה מהמשכיר"},

	{ID: "E1", Reference: "25יב(ג)", Title: "הודעת שוכר 60 יום"},
	{ID: "E2", Reference: "25יב(ב)", Title: "הודעת משכיר 90 יום"},
	{ID: "E3", Reference: "25יג", Title: "משכיר לא יכול לבטל בלי עילה"},
	{ID: "E4", Reference: "נוהג", Title: "מציאת דייר חלופי"},
	{ID: "E5", Reference: "25יב(א)", Title: "הודעה על כוונות הארכה"},

	{ID: "L1", Reference: "25ח(ב)", Title: "משכיר אחראי לתיקונים"},
	{ID: "L2", Reference: "25ח(ב)", Title: "תיקון רגיל: 30 יום"},
	{ID: "L3", Reference: "25ח(ב)", Title: "תיקון דחוף: 3 ימים"},
	{ID: "L4", Reference: "נוהג", Title: "בלאי סביר לא על השוכר"},
	{ID: "L5", Reference: "25ט(ב)(2)", Title: "ביטוח מבנה על המשכיר"},
	{ID: "L6", Reference: "סעיף 9", Title: "תיקון עצמי וקיזוז"},

	{ID: "C1", Reference: "25יד", Title: "איסור התניה"},
	{ID: "C2", Reference: "25ו + תוספת ראשונה", Title: "דירה ראויה למגורים"},
	{ID: "C3", Reference: "25ב", Title: "חוזה בכתב"},
	{ID: "C4", Reference: "25ג + תוספת שנייה", Title: "תוכן חוזה"},
	{ID: "C5", Reference: "25ו(ב)", Title: "מסירת דירה לא ראויה היא הפרה"},
	{ID: "C6", Reference: "25טו", Title: "סייגי תחולה"},
	{ID: "C7", Reference: "סעיף 6", Title: "התאמת המושכר"},
	{ID: "C99", Reference: "כללי", Title: "הפרה כללית"},
}

func init() {
	for i := range rules {
		rules[i].Category, _ = riskscore.CategoryFor(rules[i].ID)
	}
}

// Rules returns the catalog in citation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// LookupRule finds a catalog rule by identifier, case-insensitively.
func LookupRule(id string) (Rule, bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	for _, r := range rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Annotate fills an empty legal_basis from the catalog. Issues citing a
// rule outside the catalog are returned unchanged.
func Annotate(issues []model.Issue) []model.Issue {
	out := make([]model.Issue, len(issues))
	for i, issue := range issues {
		if issue.LegalBasis == "" {
			if r, ok := LookupRule(issue.RuleID); ok {
				issue.LegalBasis = r.Reference
			}
		}
		out[i] = issue
	}
	return out
}
