package models

import (
	"fmt"
	"strings"
)

// Severity is ordered: Debug < Info < Warning < Error < Critical.
// The zero value is unset and invalid.
type Severity int

const (
	SeverityDebug Severity = iota + 1
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityDebug:    "debug",
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityError:    "error",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Valid reports whether s is one of the five defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityDebug && s <= SeverityCritical
}

// ValidForAlert reports whether s is in the alert scale {critical, warning, info}.
func (s Severity) ValidForAlert() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// ParseSeverity maps a level string to a Severity. Accepts the common
// aliases seen in log streams (warn, err, fatal, panic).
func ParseSeverity(level string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return SeverityDebug, nil
	case "info", "information", "notice":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error", "err":
		return SeverityError, nil
	case "critical", "crit", "fatal", "panic", "emergency":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", level)
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the higher of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}
