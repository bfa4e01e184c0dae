package sanitizer

import "strings"

// ContractConfidence scores 0-100 how much text reads like a rental
// contract, from weighted keyword presence.
func ContractConfidence(text string) int {
	lower := strings.ToLower(text)

	score := 0
	for _, kw := range contractKeywords {
		if strings.Contains(text, kw.phrase) || strings.Contains(lower, kw.phrase) {
			score += kw.weight
		}
	}

	switch {
	case score > 100:
		return 100
	case score < 0:
		return 0
	}
	return score
}
