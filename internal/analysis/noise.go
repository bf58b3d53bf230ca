package analysis

import (
	"fmt"
	"regexp"

	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// DefaultLogNoisePatterns are benign log messages that never need a group.
var DefaultLogNoisePatterns = []string{
	`health ?check`,
	`connection reset by peer`,
	`context canceled`,
	`request canceled`,
	`\beof\b`,
}

// DefaultAlertNoisePatterns is empty: alert rules are curated upstream, so
// no alert is treated as noise unless configured.
var DefaultAlertNoisePatterns = []string{}

// NoiseFilter matches event messages against per-kind benign patterns.
// All patterns are matched case-insensitively.
type NoiseFilter struct {
	log   []*regexp.Regexp
	alert []*regexp.Regexp
}

// NewNoiseFilter compiles the given patterns. Returns an error naming the
// first pattern that fails to compile.
func NewNoiseFilter(logPatterns, alertPatterns []string) (*NoiseFilter, error) {
	logRes, err := compilePatterns(logPatterns)
	if err != nil {
		return nil, fmt.Errorf("log noise patterns: %w", err)
	}
	alertRes, err := compilePatterns(alertPatterns)
	if err != nil {
		return nil, fmt.Errorf("alert noise patterns: %w", err)
	}
	return &NoiseFilter{log: logRes, alert: alertRes}, nil
}

// DefaultNoiseFilter returns a filter with the built-in pattern lists.
func DefaultNoiseFilter() *NoiseFilter {
	f, err := NewNoiseFilter(DefaultLogNoisePatterns, DefaultAlertNoisePatterns)
	if err != nil {
		panic(err)
	}
	return f
}

// IsNoise reports whether e matches a known-benign pattern for its kind.
// Alert patterns are tried against the alert name as well as the message.
// Events of an unknown kind are never noise; the engine rejects them.
func (f *NoiseFilter) IsNoise(e models.Event) bool {
	var patterns []*regexp.Regexp
	switch e.Kind {
	case models.KindAlert:
		patterns = f.alert
	case models.KindLogLine:
		patterns = f.log
	default:
		return false
	}
	for _, re := range patterns {
		if re.MatchString(e.Message) {
			return true
		}
		if e.Kind == models.KindAlert && re.MatchString(e.Name) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
