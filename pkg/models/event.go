// Package models contains shared data models used across the noisegate codebase.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for events rejected at the engine boundary.
var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnknownEventKind = errors.New("unknown event kind")
)

// Kind discriminates the two event families the engine groups.
// The zero value is invalid so an unset kind is always rejected.
type Kind int

const (
	KindAlert Kind = iota + 1
	KindLogLine
)

func (k Kind) String() string {
	switch k {
	case KindAlert:
		return "alert"
	case KindLogLine:
		return "log"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps "alert" / "log" (and a few aliases) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alert":
		return KindAlert, nil
	case "log", "logline", "log_line":
		return KindLogLine, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEventKind, s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindAlert, KindLogLine:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownEventKind, int(k))
	}
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is a single immutable observation from an alert source or a log stream.
type Event struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Kind       Kind              `json:"kind"`
	Name       string            `json:"name,omitempty"`
	Severity   Severity          `json:"severity"`
	Source     string            `json:"source"`
	Message    string            `json:"message"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Validate checks required and kind-specific fields.
// Errors wrap ErrMalformedEvent or ErrUnknownEventKind.
func (e Event) Validate() error {
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrMalformedEvent)
	}

	switch e.Kind {
	case KindAlert:
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("%w: alert name is required", ErrMalformedEvent)
		}
		if !e.Severity.ValidForAlert() {
			return fmt.Errorf("%w: alert severity must be critical, warning or info; got %q", ErrMalformedEvent, e.Severity)
		}
	case KindLogLine:
		if e.Message == "" {
			return fmt.Errorf("%w: log message is required", ErrMalformedEvent)
		}
		if !e.Severity.Valid() {
			return fmt.Errorf("%w: unknown log severity %q", ErrMalformedEvent, e.Severity)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEventKind, int(e.Kind))
	}

	return nil
}
