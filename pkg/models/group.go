package models

import "time"

// EventGroup is the aggregate of all events sharing a signature.
// Values handed out by the group store are snapshots; mutating them has no
// effect on the store.
type EventGroup struct {
	Signature string    `json:"signature"`
	Kind      Kind      `json:"kind"`
	Pattern   string    `json:"pattern"`
	Severity  Severity  `json:"severity"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Sources   []string  `json:"sources"`
	Samples   []Event   `json:"samples"`
}

// Outcome is the per-event verdict of the engine.
type Outcome int

const (
	OutcomeEmit Outcome = iota + 1
	OutcomeSuppress
	OutcomeNoise
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmit:
		return "emit"
	case OutcomeSuppress:
		return "suppress"
	case OutcomeNoise:
		return "noise"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// EmitReason explains why an emit decision was surfaced.
type EmitReason string

const (
	EmitNew      EmitReason = "new"
	EmitRollover EmitReason = "rollover"
)

// Decision is returned for every processed event. Group is nil for noise.
type Decision struct {
	Outcome Outcome     `json:"outcome"`
	Reason  EmitReason  `json:"reason,omitempty"`
	Group   *EventGroup `json:"group,omitempty"`
}

// Summary aggregates engine counters for reporting.
type Summary struct {
	TotalEntries       int     `json:"total_entries"`
	TotalProcessed     int     `json:"total_processed"`
	UniqueSignatures   int     `json:"unique_signatures"`
	SuppressedCount    int     `json:"suppressed_count"`
	SuppressionRatePct float64 `json:"suppression_rate_pct"`
	ActiveGroupCount   int     `json:"active_group_count"`
	ActionableCount    int     `json:"actionable_count"`
	NoiseCount         int     `json:"noise_count"`
	NoiseReductionPct  float64 `json:"noise_reduction_pct"`
	RejectedCount      int     `json:"rejected_count"`
	EvictedCount       int     `json:"evicted_count"`
}
