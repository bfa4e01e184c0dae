package sanitizer

import (
	"regexp"

	"github.com/dlclark/regexp2"
)

// PIIRule masks one category of personally identifying information.
type PIIRule struct {
	Label       string
	Pattern     *regexp.Regexp
	Replacement string
}

// piiRules is applied in order. phone_mobile must stay ahead of
// bank_account: both shapes match some plain digit runs and the mobile
// shape is the narrower one. Replacements contain no digits or '@' so
// they can never be matched by a later rule or a second pass.
var piiRules = []PIIRule{
	{
		Label:       "israeli_id",
		Pattern:     regexp.MustCompile(`\b[0-9]{8,9}\b`),
		Replacement: "[ת.ז. הוסתר]",
	},
	{
		Label:       "credit_card",
		Pattern:     regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
		Replacement: "[כ.אשראי הוסתר]",
	},
	{
		Label:       "phone_mobile",
		Pattern:     regexp.MustCompile(`\b05\d[-\s]?\d{3}[-\s]?\d{4}\b`),
		Replacement: "[נייד הוסתר]",
	},
	{
		Label:       "email",
		Pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		Replacement: "[אימייל הוסתר]",
	},
	{
		Label:       "bank_account",
		Pattern:     regexp.MustCompile(`\b\d{2,3}[-\s]?\d{3}[-\s]?\d{6,9}\b`),
		Replacement: "[חשבון בנק הוסתר]",
	},
}

// PIIRules returns a copy of the ordered masking table.
func PIIRules() []PIIRule {
	out := make([]PIIRule, len(piiRules))
	copy(out, piiRules)
	return out
}

// noisePatterns are scanner watermarks and OCR artifacts. Each match
// becomes a single space.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)scanned with camscanner.*`),
	regexp.MustCompile(`(?i)www\.camscanner\.com`),
	regexp.MustCompile(`[\x{2000}-\x{200F}]`),
	regexp.MustCompile("[|~^§`®©™]"),
	regexp.MustCompile(`_{3,}`),
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLineRun    = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// Direction keywords. reversedKeywords[i] is normalKeywords[i] spelled
// backwards, so mirroring a line swaps the two sets exactly.
var (
	normalKeywords   = []string{"חוזה", "הסכם", "שכירות", "משכיר", "שוכר", "דירה"}
	reversedKeywords = []string{"הזוח", "םכסה", "תוריכש", "ריכשמ", "רכוש", "הריד"}
)

// sectionHeaders start a new clause wherever they appear in a line.
var sectionHeaders = []string{
	"מבוא", "הואיל", "לפיכך",
	"תקופת השכירות", "תקופת האופציה", "הארכת החוזה",
	"דמי השכירות", "דמי שכירות", "תשלומים",
	"מיסים, אגרות ותשלומים", "מיסים ותשלומים",
	"השימוש והחזקה", "השימוש במושכר", "החזקת המושכר",
	"אחריות לנזק", "אחריות", "נזקים",
	"פינוי המושכר", "פינוי הדירה", "פינוי",
	"בטחונות", "ערבויות", "ערבות", "ביטחונות",
	"הפרות", "הפרה יסודית", "ביטול ההסכם",
	"שונות", "הוראות כלליות", "כללי",
	"חתימות", "חתימה",
}

// Clause boundary patterns need lookaround, which RE2 does not support.
var (
	// A line opening with "3." / "12)" / "א." that is not a money amount
	// or a date.
	clauseOpener = regexp2.MustCompile(
		`^(?:[0-9]{1,2}|[א-י])[.)]\s+`+
			`(?![0-9,]+\s*(?:ש[״']?ח|₪|שקל|אלף))`+
			`(?![0-9]{1,2}[./][0-9])`,
		regexp2.None)

	// A numbered clause starting mid-line. Only fires before a Hebrew
	// letter, so Latin-script contracts are never re-split.
	inlineClause = regexp2.MustCompile(
		`(?<=\S)\s+([0-9]{1,2})\.\s+`+
			`(?![0-9,]+\s*(?:ש[״']?ח|₪))`+
			`(?![0-9]{1,2}[./][0-9])`+
			`(?=[\u0590-\u05FF])`,
		regexp2.None)

	// Fragments made only of digits, punctuation and underscores.
	noWordContent = regexp2.MustCompile(`^[\d\W_]+$`, regexp2.None)
)

type weightedKeyword struct {
	phrase string
	weight int
}

// contractKeywords drive ContractConfidence. Weights are additive.
var contractKeywords = []weightedKeyword{
	{"חוזה שכירות", 20}, {"הסכם שכירות", 20},
	{"המשכיר", 10}, {"משגיר", 10}, {"בעל הדירה", 10},
	{"השוכר", 10}, {"השובר", 10},
	{"דמי שכירות", 15}, {"תשלום חודשי", 10},
	{"תקופת השכירות", 10}, {"תקופת האופציה", 5},
	{"פינוי", 5}, {"ערבות", 5}, {"צ'ק ביטחון", 5},
	{"בלתי מוגנת", 10},
}
