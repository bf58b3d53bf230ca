package handler

import (
	"net/http"

	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/ingest"
)

type webhookResponse struct {
	batchTally
	Skipped int `json:"skipped"`
}

// NewAlertmanagerHandler returns an http.HandlerFunc for
// POST /api/v1/webhooks/alertmanager. Resolved alerts are skipped.
func NewAlertmanagerHandler(d *ingest.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		var payload ingest.AlertmanagerPayload
		if !decodeBody(w, r, &payload) {
			return
		}

		events, skipped := ingest.FromAlertmanager(payload)
		resp := webhookResponse{Skipped: skipped}
		if len(events) > 0 {
			resp.batchTally = buildIngestResponse(d.Dispatch(r.Context(), tenantID, events)).batchTally
		}
		response.JSON(w, resp)
	}
}
