package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification records one emit decision handed to the reporting side.
// Rows are append-only and never read back into engine state.
type Notification struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	TenantID  uuid.UUID  `db:"tenant_id"  json:"tenant_id"`
	Signature string     `db:"signature"  json:"signature"`
	Kind      string     `db:"kind"       json:"kind"`
	Pattern   string     `db:"pattern"    json:"pattern"`
	Severity  string     `db:"severity"   json:"severity"`
	Reason    EmitReason `db:"reason"     json:"reason"`
	Count     int        `db:"count"      json:"count"`
	Sources   []string   `db:"sources"    json:"sources"`
	FirstSeen time.Time  `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time  `db:"last_seen"  json:"last_seen"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
