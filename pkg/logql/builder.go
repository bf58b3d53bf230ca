package logql

import (
	"fmt"
	"strconv"
	"strings"
)

// QueryBuilder constructs LogQL stream queries for the log poller.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type QueryBuilder struct{}

// StreamParams selects the log streams fed to the grouping engine.
type StreamParams struct {
	Service   string
	Namespace string
	Levels    []string
	Contains  string
}

// BuildStreamQuery returns a LogQL query selecting the configured streams.
// Label values are quoted so they cannot break out of the selector.
func (b QueryBuilder) BuildStreamQuery(p StreamParams) string {
	parts := []string{b.buildSelector(p.Service, p.Namespace)}

	if kf := b.buildKeywordFilter(p.Contains); kf != "" {
		parts = append(parts, kf)
	}
	if lf := b.buildLevelFilter(p.Levels); lf != "" {
		parts = append(parts, lf)
	}

	return strings.Join(parts, " ")
}

// Resolve returns raw when set, otherwise the query built from p.
func (b QueryBuilder) Resolve(raw string, p StreamParams) string {
	if strings.TrimSpace(raw) != "" {
		return raw
	}
	return b.BuildStreamQuery(p)
}

func (b QueryBuilder) buildSelector(service, namespace string) string {
	var matchers []string
	if service != "" {
		matchers = append(matchers, "service="+strconv.Quote(service))
	}
	if namespace != "" {
		matchers = append(matchers, "namespace="+strconv.Quote(namespace))
	}
	if len(matchers) == 0 {
		// LogQL rejects an empty selector.
		return `{service=~".+"}`
	}
	return "{" + strings.Join(matchers, ", ") + "}"
}

func (b QueryBuilder) buildLevelFilter(levels []string) string {
	if len(levels) == 0 {
		return ""
	}
	lower := make([]string, 0, len(levels))
	for _, l := range levels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			lower = append(lower, l)
		}
	}
	if len(lower) == 0 {
		return ""
	}
	return fmt.Sprintf(`| level =~ "(?i)(%s)"`, strings.Join(lower, "|"))
}

func (b QueryBuilder) buildKeywordFilter(keyword string) string {
	if keyword == "" {
		return ""
	}
	if strings.Contains(keyword, "`") {
		return "|= " + strconv.Quote(keyword)
	}
	return fmt.Sprintf("|= `%s`", keyword)
}
