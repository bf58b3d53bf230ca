package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// API key scopes. Admin implies every other scope.
const (
	ScopeIngest = "ingest"
	ScopeRead   = "read"
	ScopeAdmin  = "admin"
)

// AllScopes lists every scope a key may carry.
var AllScopes = []string{ScopeIngest, ScopeRead, ScopeAdmin}

// DefaultScopes returns the scopes granted to a key created without any.
func DefaultScopes() []string {
	return []string{ScopeIngest, ScopeRead}
}

// ValidScope reports whether s names a known scope.
func ValidScope(s string) bool {
	return slices.Contains(AllScopes, s)
}

// GrantsScope reports whether scopes include scope directly or through admin.
func GrantsScope(scopes []string, scope string) bool {
	return slices.Contains(scopes, scope) || slices.Contains(scopes, ScopeAdmin)
}

// APIKey authenticates ingest and read clients of one tenant.
// The raw key is returned once at creation; only its bcrypt hash is kept.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	TenantID   uuid.UUID  `db:"tenant_id"    json:"tenant_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Allows reports whether the key may perform operations requiring scope.
func (k *APIKey) Allows(scope string) bool {
	return GrantsScope(k.Scopes, scope)
}

// Revoked reports whether the key has been soft-deleted.
func (k *APIKey) Revoked() bool {
	return k.DeletedAt != nil
}
