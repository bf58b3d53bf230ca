package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/internal/grouping"
	"github.com/kiranshivaraju/noisegate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 2, 17, 1, 0, 0, 0, time.UTC)

func logEvent(msg, source string, offset time.Duration) models.Event {
	return models.Event{
		ID:         msg + source + offset.String(),
		OccurredAt: t0.Add(offset),
		Kind:       models.KindLogLine,
		Severity:   models.SeverityError,
		Source:     source,
		Message:    msg,
	}
}

func populated(t *testing.T) *engine.Engine {
	t.Helper()
	now := t0.Add(10 * time.Minute)
	e := engine.New(engine.Config{Store: grouping.Options{Now: func() time.Time { return now }}})
	for i, ev := range []models.Event{
		logEvent("DB timeout after 5000ms", "payment", 0),
		logEvent("DB timeout after 3000ms", "checkout", time.Minute),
		logEvent("DB timeout after 100ms", "payment", 2*time.Minute),
		logEvent("Cache miss for key 42", "api", 3*time.Minute),
		logEvent("health check passed", "lb", 4*time.Minute),
	} {
		_, err := e.Process(ev)
		require.NoError(t, err, "event %d", i)
	}
	return e
}

func TestBuild(t *testing.T) {
	r := Build(populated(t), Options{Now: func() time.Time { return t0 }})

	assert.Equal(t, t0, r.GeneratedAt)
	assert.Equal(t, 5, r.Summary.TotalEntries)
	assert.Equal(t, 1, r.Summary.NoiseCount)
	assert.Len(t, r.Active, 2)
	require.Len(t, r.Actionable, 1)
	assert.Equal(t, 3, r.Actionable[0].Count)
	assert.Equal(t, "DB timeout after <NUM>ms", r.Actionable[0].Pattern)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Build(populated(t), Options{})))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "active_groups")
	assert.Contains(t, decoded, "actionable_groups")

	groups := decoded["actionable_groups"].([]any)
	g := groups[0].(map[string]any)
	assert.Equal(t, "log", g["kind"])
	assert.Equal(t, "error", g["severity"])
	assert.EqualValues(t, 3, g["count"])
	assert.ElementsMatch(t, []any{"payment", "checkout"}, g["sources"])
}

func TestWriteJSON_EmptyEngine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Build(engine.New(engine.Config{}), Options{})))
	assert.Contains(t, buf.String(), `"active_groups": []`)
	assert.Contains(t, buf.String(), `"actionable_groups": []`)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Build(populated(t), Options{}), 0))
	out := buf.String()

	assert.Contains(t, out, "NOISEGATE REPORT")
	assert.Contains(t, out, "Noise filtered:")
	assert.Contains(t, out, "1 (20.0%)")
	assert.Contains(t, out, "ACTIVE GROUPS")
	assert.Contains(t, out, "[   3x] DB timeout after <NUM>ms")
	assert.Contains(t, out, "1 unique patterns need attention")
	assert.Contains(t, out, "Reduced 4 events to 2 groups")
	assert.NotContains(t, out, "Evicted")
}

func TestWriteText_TopLimit(t *testing.T) {
	r := Report{Actionable: []models.EventGroup{
		{Pattern: "first", Count: 9},
		{Pattern: "second", Count: 5},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r, 1))
	assert.Contains(t, buf.String(), "first")
	assert.NotContains(t, buf.String(), "second")
}

func TestFormatSources(t *testing.T) {
	assert.Equal(t, "-", formatSources(nil))
	assert.Equal(t, "a,b", formatSources([]string{"a", "b"}))
	assert.Equal(t, "a,b,c,+2", formatSources([]string{"a", "b", "c", "d", "e"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 70)
	got := truncate(long, patternWidth)
	assert.Len(t, got, patternWidth)
	assert.True(t, strings.HasSuffix(got, "..."))
}
