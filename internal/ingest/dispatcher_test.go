package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 2, 17, 1, 0, 0, 0, time.UTC)

type fakeRecorder struct {
	mu   sync.Mutex
	rows []*models.Notification
	err  error
}

func (f *fakeRecorder) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(rec Recorder) *Dispatcher {
	reg := engine.NewRegistry(engine.Config{Logger: quietLogger()})
	return NewDispatcher(reg, rec, quietLogger())
}

func alertEvent(offset time.Duration) models.Event {
	return models.Event{
		OccurredAt: t0.Add(offset),
		Kind:       models.KindAlert,
		Name:       "HighErrorRate",
		Severity:   models.SeverityCritical,
		Source:     "api",
		Message:    "Error rate > 5%",
	}
}

func TestDispatch_RecordsOnlyEmits(t *testing.T) {
	rec := &fakeRecorder{}
	d := newTestDispatcher(rec)
	tenant := uuid.New()

	results := d.Dispatch(context.Background(), tenant, []models.Event{
		alertEvent(0),
		alertEvent(60 * time.Second),
		alertEvent(400 * time.Second),
	})

	require.Len(t, results, 3)
	assert.Equal(t, models.OutcomeEmit, results[0].Decision.Outcome)
	assert.Equal(t, models.OutcomeSuppress, results[1].Decision.Outcome)
	assert.Equal(t, models.OutcomeEmit, results[2].Decision.Outcome)

	require.Len(t, rec.rows, 2)
	assert.Equal(t, models.EmitNew, rec.rows[0].Reason)
	assert.Equal(t, models.EmitRollover, rec.rows[1].Reason)
	assert.Equal(t, 3, rec.rows[1].Count)
	assert.Equal(t, tenant, rec.rows[1].TenantID)
	assert.Equal(t, "alert", rec.rows[1].Kind)
	assert.Equal(t, "critical", rec.rows[1].Severity)
	assert.Equal(t, "HighErrorRate", rec.rows[1].Pattern)
}

func TestDispatch_AssignsMissingIDs(t *testing.T) {
	d := newTestDispatcher(nil)

	withID := alertEvent(0)
	withID.ID = "given"
	results := d.Dispatch(context.Background(), uuid.New(), []models.Event{withID, alertEvent(time.Second)})

	assert.Equal(t, "given", results[0].EventID)
	_, err := uuid.Parse(results[1].EventID)
	assert.NoError(t, err)
}

func TestDispatch_RecorderFailureKeepsDecision(t *testing.T) {
	d := newTestDispatcher(&fakeRecorder{err: errors.New("db down")})

	results := d.Dispatch(context.Background(), uuid.New(), []models.Event{alertEvent(0)})
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, models.OutcomeEmit, results[0].Decision.Outcome)
}

func TestDispatch_RejectedNotRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	d := newTestDispatcher(rec)

	bad := alertEvent(0)
	bad.Name = ""
	results := d.Dispatch(context.Background(), uuid.New(), []models.Event{bad})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, models.ErrMalformedEvent)
	assert.Empty(t, rec.rows)
}

func TestDispatch_TenantsIsolated(t *testing.T) {
	d := newTestDispatcher(nil)
	a, b := uuid.New(), uuid.New()

	d.Dispatch(context.Background(), a, []models.Event{alertEvent(0), alertEvent(time.Second)})
	d.Dispatch(context.Background(), b, []models.Event{alertEvent(0)})

	assert.Equal(t, 2, d.Engine(a).Summary().TotalProcessed)
	assert.Equal(t, 1, d.Engine(b).Summary().TotalProcessed)
}
