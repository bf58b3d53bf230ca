package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/noisegate/internal/api/middleware"
	"github.com/kiranshivaraju/noisegate/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	IngestHandler       http.HandlerFunc
	AlertmanagerHandler http.HandlerFunc
	ListGroups          http.HandlerFunc
	ActionableGroups    http.HandlerFunc
	GetGroup            http.HandlerFunc
	SummaryHandler      http.HandlerFunc
	ListNotifications   http.HandlerFunc
	CreateKeyHandler    http.HandlerFunc
	ListKeysHandler     http.HandlerFunc
	RevokeKeyHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeIngest))

			r.Post("/api/v1/events", orNotImplemented(deps.IngestHandler))
			r.Post("/api/v1/webhooks/alertmanager", orNotImplemented(deps.AlertmanagerHandler))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeRead))

			r.Get("/api/v1/groups", orNotImplemented(deps.ListGroups))
			r.Get("/api/v1/groups/actionable", orNotImplemented(deps.ActionableGroups))
			r.Get("/api/v1/groups/{signature}", orNotImplemented(deps.GetGroup))
			r.Get("/api/v1/summary", orNotImplemented(deps.SummaryHandler))
			r.Get("/api/v1/notifications", orNotImplemented(deps.ListNotifications))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
