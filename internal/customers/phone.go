package customers

import "strings"

// NormalizePhone keeps digits and '+'.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func togglePlus(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone[1:]
	}
	return "+" + phone
}

// LookupCandidates lists the stored forms a phone number may have, in the
// order they are tried: exact, normalized, then both with the leading '+'
// toggled. Duplicates and empty keys are dropped.
func LookupCandidates(phone string) []string {
	normalized := NormalizePhone(phone)
	raw := []string{phone, normalized}
	if phone != "" {
		raw = append(raw, togglePlus(phone))
	}
	if normalized != "" {
		raw = append(raw, togglePlus(normalized))
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, k := range raw {
		if k == "" || k == "+" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
