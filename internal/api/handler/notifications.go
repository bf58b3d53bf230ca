package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/store"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

// NotificationLister is the store subset used by the notifications handler.
type NotificationLister interface {
	ListNotifications(ctx context.Context, filter store.NotificationFilter) ([]*models.Notification, int, error)
}

// NewListNotificationsHandler returns an http.HandlerFunc for
// GET /api/v1/notifications. Query params: signature, severity, since
// (RFC3339), page, limit.
func NewListNotificationsHandler(s NotificationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		filter := store.NotificationFilter{
			TenantID:  tenantID,
			Signature: q.Get("signature"),
			Severity:  q.Get("severity"),
		}

		if filter.Severity != "" {
			sev, err := models.ParseSeverity(filter.Severity)
			if err != nil {
				response.BadRequest(w, "INVALID_SEVERITY", err.Error())
				return
			}
			filter.Severity = sev.String()
		}
		if raw := q.Get("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(w, "INVALID_SINCE", "since must be a valid RFC3339 timestamp")
				return
			}
			filter.Since = since
		}

		var err error
		if filter.Page, err = queryInt(r, "page", 1, 1, 100_000); err != nil {
			response.BadRequest(w, "INVALID_PAGE", err.Error())
			return
		}
		if filter.Limit, err = queryInt(r, "limit", 20, 1, 100); err != nil {
			response.BadRequest(w, "INVALID_LIMIT", err.Error())
			return
		}

		list, total, err := s.ListNotifications(r.Context(), filter)
		if err != nil {
			response.Internal(w, "Failed to list notifications")
			return
		}
		response.Collection(w, list, response.NewPaginationMeta(filter.Page, filter.Limit, total))
	}
}
