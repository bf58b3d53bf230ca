package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kiranshivaraju/noisegate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookBody = `{
  "version": "4",
  "groupKey": "{}:{alertname=\"HighErrorRate\"}",
  "status": "firing",
  "receiver": "noisegate",
  "alerts": [
    {
      "status": "firing",
      "labels": {"alertname": "HighErrorRate", "severity": "critical", "service": "checkout", "instance": "10.0.0.1:9090"},
      "annotations": {"summary": "Error rate > 5%", "description": "long text"},
      "startsAt": "2024-02-17T01:00:00Z",
      "endsAt": "0001-01-01T00:00:00Z",
      "fingerprint": "c4f1b2a3d4e5f607"
    },
    {
      "status": "resolved",
      "labels": {"alertname": "DiskFull", "severity": "warning"},
      "annotations": {},
      "startsAt": "2024-02-17T00:00:00Z",
      "endsAt": "2024-02-17T00:30:00Z"
    },
    {
      "status": "firing",
      "labels": {"alertname": "QueueBacklog", "job": "worker"},
      "annotations": {"description": "backlog growing"},
      "startsAt": "2024-02-17T01:05:00Z"
    }
  ]
}`

func TestFromAlertmanager(t *testing.T) {
	var p AlertmanagerPayload
	require.NoError(t, json.Unmarshal([]byte(webhookBody), &p))

	events, skipped := FromAlertmanager(p)
	assert.Equal(t, 1, skipped)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, models.KindAlert, first.Kind)
	assert.Equal(t, "HighErrorRate", first.Name)
	assert.Equal(t, models.SeverityCritical, first.Severity)
	assert.Equal(t, "checkout", first.Source)
	assert.Equal(t, "Error rate > 5%", first.Message)
	assert.Equal(t, time.Date(2024, 2, 17, 1, 0, 0, 0, time.UTC), first.OccurredAt)
	assert.Equal(t, "c4f1b2a3d4e5f607-1708131600", first.ID)
	assert.NoError(t, first.Validate())

	second := events[1]
	assert.Equal(t, DefaultAlertSeverity, second.Severity)
	assert.Equal(t, "worker", second.Source)
	assert.Equal(t, "backlog growing", second.Message)
	assert.Empty(t, second.ID)
}

func TestFromAlertmanager_UnknownSeverityIsRejectedDownstream(t *testing.T) {
	p := AlertmanagerPayload{Alerts: []AlertmanagerAlert{{
		Status:   "firing",
		Labels:   map[string]string{"alertname": "X", "severity": "page-me"},
		StartsAt: time.Now(),
	}}}

	events, _ := FromAlertmanager(p)
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Validate(), models.ErrMalformedEvent)
}

func TestFromAlertmanager_ErrorSeverityNotAlertScale(t *testing.T) {
	p := AlertmanagerPayload{Alerts: []AlertmanagerAlert{{
		Status:   "firing",
		Labels:   map[string]string{"alertname": "X", "severity": "error"},
		StartsAt: time.Now(),
	}}}

	events, _ := FromAlertmanager(p)
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Validate(), models.ErrMalformedEvent)
}

func TestFromAlertmanager_LabelsCopied(t *testing.T) {
	labels := map[string]string{"alertname": "X", "severity": "info"}
	p := AlertmanagerPayload{Alerts: []AlertmanagerAlert{{Status: "firing", Labels: labels, StartsAt: time.Now()}}}

	events, _ := FromAlertmanager(p)
	labels["alertname"] = "mutated"
	assert.Equal(t, "X", events[0].Labels["alertname"])
}

func TestFromAlertmanager_Empty(t *testing.T) {
	events, skipped := FromAlertmanager(AlertmanagerPayload{})
	assert.Empty(t, events)
	assert.NotNil(t, events)
	assert.Zero(t, skipped)
}
