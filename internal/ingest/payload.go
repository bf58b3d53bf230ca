package ingest

import (
	"time"

	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// EventPayload is the wire form of an event, shared by the HTTP ingest
// endpoint and NDJSON replay. Kind and severity stay strings so an unknown
// value is rejected and tallied by the engine instead of failing the
// whole batch.
type EventPayload struct {
	ID         string            `json:"id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Kind       string            `json:"kind"`
	Name       string            `json:"name"`
	Severity   string            `json:"severity"`
	Source     string            `json:"source"`
	Message    string            `json:"message"`
	Labels     map[string]string `json:"labels"`
}

// Event converts p. A log line without a severity is treated as info.
func (p EventPayload) Event() models.Event {
	kind, _ := models.ParseKind(p.Kind)
	severity, err := models.ParseSeverity(p.Severity)
	if err != nil && p.Severity == "" && kind == models.KindLogLine {
		severity = models.SeverityInfo
	}
	return models.Event{
		ID:         p.ID,
		OccurredAt: p.OccurredAt,
		Kind:       kind,
		Name:       p.Name,
		Severity:   severity,
		Source:     p.Source,
		Message:    p.Message,
		Labels:     p.Labels,
	}
}
