// Package ingest turns external payloads into events and feeds them to the
// tenant's grouping engine. Emitted decisions are recorded to the
// notifications audit table.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// Recorder persists emitted decisions.
type Recorder interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Dispatcher routes events to per-tenant engines.
type Dispatcher struct {
	registry *engine.Registry
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. recorder may be nil, in which case
// emits are only logged.
func NewDispatcher(registry *engine.Registry, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Engine returns the tenant's engine.
func (d *Dispatcher) Engine(tenantID uuid.UUID) *engine.Engine {
	return d.registry.For(tenantID)
}

// Dispatch processes events in order for one tenant. Events without an ID
// get a generated one. A failed notification write is logged and does not
// change the decision.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID uuid.UUID, events []models.Event) []engine.Result {
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
	}

	results := d.registry.For(tenantID).ProcessBatch(events)

	for _, res := range results {
		if res.Err != nil || res.Decision.Outcome != models.OutcomeEmit {
			continue
		}
		d.record(ctx, tenantID, res.Decision)
	}
	return results
}

func (d *Dispatcher) record(ctx context.Context, tenantID uuid.UUID, decision models.Decision) {
	g := decision.Group
	d.logger.Info("group emitted",
		"tenant_id", tenantID,
		"signature", g.Signature,
		"kind", g.Kind.String(),
		"reason", decision.Reason,
		"count", g.Count,
	)
	if d.recorder == nil {
		return
	}

	n := &models.Notification{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Signature: g.Signature,
		Kind:      g.Kind.String(),
		Pattern:   g.Pattern,
		Severity:  g.Severity.String(),
		Reason:    decision.Reason,
		Count:     g.Count,
		Sources:   append([]string{}, g.Sources...),
		FirstSeen: g.FirstSeen,
		LastSeen:  g.LastSeen,
		CreatedAt: d.now(),
	}
	if err := d.recorder.CreateNotification(ctx, n); err != nil {
		d.logger.Error("record notification failed",
			"tenant_id", tenantID,
			"signature", g.Signature,
			"error", err,
		)
	}
}
