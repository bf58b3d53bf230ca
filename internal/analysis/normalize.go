// Package analysis holds the pure, stateless parts of event grouping:
// message normalization, fingerprinting and the noise filter.
package analysis

import "regexp"

type maskRule struct {
	re          *regexp.Regexp
	replacement string
}

// Masking rules, applied in order. Dates and times must be masked before
// the generic digit rule or their digits would be consumed first. The UUID
// rule is unanchored: a UUID glued to a digit must still match on the first
// pass, otherwise the later <NUM> mask would expose it on the second.
var maskRules = []maskRule{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "<DATE>"},
	{regexp.MustCompile(`\d{2}:\d{2}:\d{2}`), "<TIME>"},
	{regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), "<UUID>"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "<IP>"},
	{regexp.MustCompile(`\d+`), "<NUM>"},
}

// Normalize reduces a free-text message to its canonical pattern by masking
// dates, times, UUIDs, IPv4 addresses and remaining digit runs.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(message string) string {
	for _, rule := range maskRules {
		message = rule.re.ReplaceAllString(message, rule.replacement)
	}
	return message
}
