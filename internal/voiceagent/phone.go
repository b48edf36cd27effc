package voiceagent

import (
	"sort"
	"strings"
)

var dialPrefixes = map[string]string{
	"+1":  "US",
	"+7":  "RU",
	"+31": "NL",
	"+33": "FR",
	"+34": "ES",
	"+39": "IT",
	"+44": "GB",
	"+45": "DK",
	"+46": "SE",
	"+47": "NO",
	"+48": "PL",
	"+49": "DE",
	"+52": "MX",
	"+55": "BR",
	"+61": "AU",
	"+81": "JP",
	"+82": "KR",
	"+86": "CN",
	"+90": "TR",
	"+91": "IN",
}

// prefixesLongestFirst is matched in order, so the longest prefix wins.
var prefixesLongestFirst = func() []string {
	out := make([]string, 0, len(dialPrefixes))
	for p := range dialPrefixes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// CountryCode maps an E.164 number to an ISO country code, defaulting to US.
func CountryCode(phone string) string {
	cleaned := strings.Join(strings.Fields(phone), "")
	for _, p := range prefixesLongestFirst {
		if strings.HasPrefix(cleaned, p) {
			return dialPrefixes[p]
		}
	}
	return "US"
}

// DialNumber strips whitespace so the platform accepts the number.
func DialNumber(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}
