// Package engine composes normalization, noise filtering, fingerprinting
// and the group store into a single per-event decision.
package engine

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/analysis"
	"github.com/kiranshivaraju/noisegate/internal/grouping"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

const DefaultSuppressionWindow = 5 * time.Minute

// Config controls engine behavior. Zero values select the defaults.
type Config struct {
	AlertSuppressionWindow time.Duration
	LogSuppressionWindow   time.Duration
	SignatureLength        int
	Store                  grouping.Options
	// Noise defaults to analysis.DefaultNoiseFilter when nil.
	Noise  *analysis.NoiseFilter
	Logger *slog.Logger
}

// Engine is a single logical stream processor. Process may be called from
// multiple goroutines; the group store serializes state changes.
type Engine struct {
	alertWindow time.Duration
	logWindow   time.Duration
	fp          analysis.Fingerprinter
	noise       *analysis.NoiseFilter
	store       *grouping.Store
	logger      *slog.Logger

	noiseCount    atomic.Int64
	rejectedCount atomic.Int64
}

// New creates an Engine with its own empty group store.
func New(cfg Config) *Engine {
	if cfg.AlertSuppressionWindow <= 0 {
		cfg.AlertSuppressionWindow = DefaultSuppressionWindow
	}
	if cfg.LogSuppressionWindow <= 0 {
		cfg.LogSuppressionWindow = DefaultSuppressionWindow
	}
	if cfg.Noise == nil {
		cfg.Noise = analysis.DefaultNoiseFilter()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		alertWindow: cfg.AlertSuppressionWindow,
		logWindow:   cfg.LogSuppressionWindow,
		fp:          analysis.NewFingerprinter(cfg.SignatureLength),
		noise:       cfg.Noise,
		store:       grouping.NewStore(cfg.Store),
		logger:      cfg.Logger,
	}
}

// Process validates ev, filters noise, and folds it into its group.
// Invalid events return an error wrapping models.ErrMalformedEvent or
// models.ErrUnknownEventKind and leave all state untouched.
func (e *Engine) Process(ev models.Event) (models.Decision, error) {
	if err := ev.Validate(); err != nil {
		e.rejectedCount.Add(1)
		e.logger.Warn("event rejected", "event_id", ev.ID, "error", err)
		return models.Decision{}, err
	}

	if e.noise.IsNoise(ev) {
		e.noiseCount.Add(1)
		return models.Decision{Outcome: models.OutcomeNoise}, nil
	}

	signature, pattern, err := e.fp.Fingerprint(ev)
	if err != nil {
		e.rejectedCount.Add(1)
		return models.Decision{}, fmt.Errorf("fingerprint event %s: %w", ev.ID, err)
	}

	decision, err := e.store.Upsert(signature, pattern, ev, e.windowFor(ev.Kind))
	if err != nil {
		e.rejectedCount.Add(1)
		return models.Decision{}, fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}

	if decision.Outcome == models.OutcomeEmit {
		e.logger.Debug("group emitted",
			"signature", signature,
			"reason", decision.Reason,
			"count", decision.Group.Count,
		)
	}
	return decision, nil
}

// Result pairs one batch event with its decision or rejection.
type Result struct {
	EventID  string          `json:"event_id"`
	Decision models.Decision `json:"decision"`
	Err      error           `json:"-"`
}

// ProcessBatch processes events in order. The outcome is identical to
// calling Process for each event one at a time.
func (e *Engine) ProcessBatch(events []models.Event) []Result {
	results := make([]Result, 0, len(events))
	for _, ev := range events {
		d, err := e.Process(ev)
		results = append(results, Result{EventID: ev.ID, Decision: d, Err: err})
	}
	return results
}

func (e *Engine) windowFor(k models.Kind) time.Duration {
	if k == models.KindAlert {
		return e.alertWindow
	}
	return e.logWindow
}

// Group returns a snapshot of the group for signature.
func (e *Engine) Group(signature string) (models.EventGroup, bool) {
	return e.store.Get(signature)
}

// Groups returns every live group ordered by count descending.
func (e *Engine) Groups() []models.EventGroup {
	return e.store.All()
}

// GroupCount returns the number of live groups.
func (e *Engine) GroupCount() int {
	return e.store.Len()
}

// Active returns groups seen within activityWindow (0 for the default).
func (e *Engine) Active(activityWindow time.Duration) []models.EventGroup {
	return e.store.Active(activityWindow)
}

// Actionable returns groups with at least minCount members (0 for the default).
func (e *Engine) Actionable(minCount int) []models.EventGroup {
	return e.store.Actionable(minCount)
}

// Summary merges the store counters with the noise and rejection tallies.
func (e *Engine) Summary() models.Summary {
	s := e.store.Summary()
	s.NoiseCount = int(e.noiseCount.Load())
	s.RejectedCount = int(e.rejectedCount.Load())
	s.TotalEntries = s.TotalProcessed + s.NoiseCount
	s.NoiseReductionPct = grouping.Percent(s.NoiseCount, s.TotalEntries)
	return s
}
