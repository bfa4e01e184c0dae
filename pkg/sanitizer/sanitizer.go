// Package sanitizer turns raw OCR output of a rental contract into text
// that is safe to store and show: mirrored lines are fixed, PII is
// masked, scanner noise is removed, and the text is segmented into
// clauses with a score of how much it looks like a rental contract.
//
// Every function in this package is pure and safe for concurrent use.
package sanitizer

import "log/slog"

// Result is the output of Sanitize.
type Result struct {
	SanitizedText      string   `json:"sanitized_text"`
	Clauses            []string `json:"clauses"`
	PIIFound           []string `json:"pii_found"`
	ContractConfidence int      `json:"contract_confidence"`
	Reversed           bool     `json:"reversed,omitempty"`
}

// Sanitize runs the full pipeline over raw document text. Empty input
// yields an empty result with zero confidence.
func Sanitize(raw string) Result {
	if raw == "" {
		return Result{Clauses: []string{}, PIIFound: []string{}}
	}

	text, reversed := FixDirection(raw)
	text, found := MaskPII(text)
	text = CleanNoise(text)

	// Noise removal can glue digit groups back together.
	text, late := MaskPII(text)
	found = mergeLabels(found, late)

	res := Result{
		SanitizedText:      text,
		Clauses:            SplitClauses(text),
		PIIFound:           found,
		ContractConfidence: ContractConfidence(text),
		Reversed:           reversed,
	}

	slog.Debug("text sanitized",
		"input_len", len(raw),
		"output_len", len(text),
		"clauses", len(res.Clauses),
		"pii_found", res.PIIFound,
		"confidence", res.ContractConfidence,
	)

	return res
}
