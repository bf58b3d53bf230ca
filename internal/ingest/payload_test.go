package ingest

import (
	"encoding/json"
	"testing"

	"github.com/kiranshivaraju/noisegate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPayload_Event(t *testing.T) {
	var p EventPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "e1",
		"occurred_at": "2024-02-17T01:00:00Z",
		"kind": "alert",
		"name": "HighErrorRate",
		"severity": "crit",
		"source": "api",
		"labels": {"team": "payments"}
	}`), &p))

	ev := p.Event()
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, models.KindAlert, ev.Kind)
	assert.Equal(t, models.SeverityCritical, ev.Severity)
	assert.Equal(t, "payments", ev.Labels["team"])
	assert.NoError(t, ev.Validate())
}

func TestEventPayload_LogDefaultsToInfo(t *testing.T) {
	ev := EventPayload{Kind: "log", Message: "boom"}.Event()
	assert.Equal(t, models.SeverityInfo, ev.Severity)

	ev = EventPayload{Kind: "alert", Name: "X"}.Event()
	assert.Equal(t, models.Severity(0), ev.Severity)
}

func TestEventPayload_UnknownValuesRejectedByValidate(t *testing.T) {
	p := EventPayload{OccurredAt: t0, Kind: "metric", Message: "x"}
	assert.ErrorIs(t, p.Event().Validate(), models.ErrUnknownEventKind)

	p = EventPayload{OccurredAt: t0, Kind: "log", Severity: "loud", Message: "x"}
	assert.ErrorIs(t, p.Event().Validate(), models.ErrMalformedEvent)
}
