package sanitizer

// MaskPII replaces every match of the PII table with the category's
// masking literal and reports which categories were seen.
//
// Rules are re-applied until none of them matches, so the output never
// contains a PII shape even when one replacement exposes another.
// Every replacement removes at least one digit or '@' and adds none,
// which bounds the loop.
func MaskPII(text string) (string, []string) {
	found := []string{}
	seen := make(map[string]bool, len(piiRules))

	for {
		changed := false
		for _, rule := range piiRules {
			if !rule.Pattern.MatchString(text) {
				continue
			}
			if !seen[rule.Label] {
				seen[rule.Label] = true
				found = append(found, rule.Label)
			}
			text = rule.Pattern.ReplaceAllLiteralString(text, rule.Replacement)
			changed = true
		}
		if !changed {
			return text, found
		}
	}
}

// ContainsPII reports whether any PII rule matches text.
func ContainsPII(text string) bool {
	for _, rule := range piiRules {
		if rule.Pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// mergeLabels appends labels from extra that are not already in base.
func mergeLabels(base, extra []string) []string {
	for _, label := range extra {
		dup := false
		for _, have := range base {
			if have == label {
				dup = true
				break
			}
		}
		if !dup {
			base = append(base, label)
		}
	}
	return base
}
