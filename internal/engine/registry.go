package engine

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds one independent engine per tenant, created on first use.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	engines map[uuid.UUID]*Engine
}

// NewRegistry creates an empty Registry. Every engine it creates shares cfg
// but owns its own group store.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, engines: make(map[uuid.UUID]*Engine)}
}

// For returns the tenant's engine, creating it if needed.
func (r *Registry) For(tenantID uuid.UUID) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	eng, ok := r.engines[tenantID]
	if !ok {
		eng = New(r.cfg)
		r.engines[tenantID] = eng
	}
	return eng
}

// Lookup returns the tenant's engine without creating one.
func (r *Registry) Lookup(tenantID uuid.UUID) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eng, ok := r.engines[tenantID]
	return eng, ok
}

// Tenants returns the IDs of tenants with a live engine.
func (r *Registry) Tenants() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	return ids
}

// RegistryStats is a point-in-time count of live engines and their groups.
type RegistryStats struct {
	Tenants int `json:"tenants"`
	Groups  int `json:"groups"`
}

// Stats counts tenants and live groups across all engines.
func (r *Registry) Stats() RegistryStats {
	var st RegistryStats
	for _, id := range r.Tenants() {
		eng, ok := r.Lookup(id)
		if !ok {
			continue
		}
		st.Tenants++
		st.Groups += eng.GroupCount()
	}
	return st
}
