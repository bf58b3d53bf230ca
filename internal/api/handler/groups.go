package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

const maxActionableMinCount = 1_000_000

type groupsResponse struct {
	Groups []models.EventGroup `json:"groups"`
	Total  int                 `json:"total"`
}

// NewListGroupsHandler returns an http.HandlerFunc for GET /api/v1/groups.
// Query params: window (activity window, default 30m), kind (alert|log).
func NewListGroupsHandler(reg *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		window, err := queryDuration(r, "window")
		if err != nil {
			response.BadRequest(w, "INVALID_WINDOW", err.Error())
			return
		}
		kind, ok := kindFilter(w, r)
		if !ok {
			return
		}

		groups := []models.EventGroup{}
		if eng, found := reg.Lookup(tenantID); found {
			groups = filterKind(eng.Active(window), kind)
		}
		response.JSON(w, groupsResponse{Groups: groups, Total: len(groups)})
	}
}

// NewActionableHandler returns an http.HandlerFunc for
// GET /api/v1/groups/actionable. Query params: min_count (default 2), kind.
func NewActionableHandler(reg *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		minCount, err := queryInt(r, "min_count", 0, 1, maxActionableMinCount)
		if err != nil {
			response.BadRequest(w, "INVALID_MIN_COUNT", err.Error())
			return
		}
		kind, ok := kindFilter(w, r)
		if !ok {
			return
		}

		groups := []models.EventGroup{}
		if eng, found := reg.Lookup(tenantID); found {
			groups = filterKind(eng.Actionable(minCount), kind)
		}
		response.JSON(w, groupsResponse{Groups: groups, Total: len(groups)})
	}
}

// NewGetGroupHandler returns an http.HandlerFunc for GET /api/v1/groups/{signature}.
func NewGetGroupHandler(reg *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		signature := chi.URLParam(r, "signature")
		var (
			g     models.EventGroup
			found bool
		)
		if eng, ok := reg.Lookup(tenantID); ok {
			g, found = eng.Group(signature)
		}
		if !found {
			response.Error(w, http.StatusNotFound, "GROUP_NOT_FOUND", "Group not found", map[string]string{"signature": signature})
			return
		}
		response.JSON(w, g)
	}
}

type summaryResponse struct {
	models.Summary
	GeneratedAt time.Time `json:"generated_at"`
}

// NewSummaryHandler returns an http.HandlerFunc for GET /api/v1/summary.
func NewSummaryHandler(reg *engine.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}
		// Reads never create an engine; a tenant that has not ingested
		// gets a zero summary.
		var summary models.Summary
		if eng, found := reg.Lookup(tenantID); found {
			summary = eng.Summary()
		}
		response.JSON(w, summaryResponse{
			Summary:     summary,
			GeneratedAt: time.Now().UTC(),
		})
	}
}

func kindFilter(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return 0, true
	}
	kind, err := models.ParseKind(raw)
	if err != nil {
		response.BadRequest(w, "INVALID_KIND", "kind must be alert or log")
		return 0, false
	}
	return kind, true
}

func filterKind(groups []models.EventGroup, kind models.Kind) []models.EventGroup {
	if kind == 0 {
		return groups
	}
	out := make([]models.EventGroup, 0, len(groups))
	for _, g := range groups {
		if g.Kind == kind {
			out = append(out, g)
		}
	}
	return out
}
