package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/engine"
)

// Pinger is any dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// Any failing dependency marks the service degraded. When reg is set a
// healthy response also reports live tenant and group counts.
func NewHealthHandler(deps map[string]Pinger, reg *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		degraded := false
		for name, p := range deps {
			checks[name] = "ok"
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = "degraded"
				degraded = true
			}
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		body := map[string]any{
			"status":   "ok",
			"services": checks,
		}
		if reg != nil {
			body["engine"] = reg.Stats()
		}
		response.JSON(w, body)
	}
}
