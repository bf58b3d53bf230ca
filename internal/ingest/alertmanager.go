package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// AlertmanagerPayload is the body of an Alertmanager webhook (version 4).
type AlertmanagerPayload struct {
	Version           string              `json:"version"`
	GroupKey          string              `json:"groupKey"`
	Status            string              `json:"status"`
	Receiver          string              `json:"receiver"`
	GroupLabels       map[string]string   `json:"groupLabels"`
	CommonLabels      map[string]string   `json:"commonLabels"`
	CommonAnnotations map[string]string   `json:"commonAnnotations"`
	ExternalURL       string              `json:"externalURL"`
	Alerts            []AlertmanagerAlert `json:"alerts"`
}

type AlertmanagerAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// DefaultAlertSeverity applies when an alert carries no severity label.
const DefaultAlertSeverity = models.SeverityWarning

// FromAlertmanager maps firing alerts to events. Resolved alerts are
// skipped and counted. Alerts with an unrecognized severity label are kept
// with an unset severity so the engine rejects and tallies them.
func FromAlertmanager(p AlertmanagerPayload) (events []models.Event, skipped int) {
	events = make([]models.Event, 0, len(p.Alerts))
	for _, a := range p.Alerts {
		if !strings.EqualFold(a.Status, "firing") {
			skipped++
			continue
		}
		events = append(events, alertToEvent(a))
	}
	return events, skipped
}

func alertToEvent(a AlertmanagerAlert) models.Event {
	severity := DefaultAlertSeverity
	if raw := a.Labels["severity"]; raw != "" {
		parsed, err := models.ParseSeverity(raw)
		if err != nil {
			parsed = 0
		}
		severity = parsed
	}

	var id string
	if a.Fingerprint != "" {
		id = fmt.Sprintf("%s-%d", a.Fingerprint, a.StartsAt.Unix())
	}

	return models.Event{
		ID:         id,
		OccurredAt: a.StartsAt.UTC(),
		Kind:       models.KindAlert,
		Name:       a.Labels["alertname"],
		Severity:   severity,
		Source:     firstNonEmpty(a.Labels, "service", "instance", "job"),
		Message:    firstNonEmpty(a.Annotations, "summary", "description", "message"),
		Labels:     copyLabels(a.Labels),
	}
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func copyLabels(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
