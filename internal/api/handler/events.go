package handler

import (
	"errors"
	"net/http"

	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/internal/ingest"
	"github.com/kiranshivaraju/noisegate/pkg/models"
)

const maxEventsPerRequest = 1000

type eventResult struct {
	EventID   string            `json:"event_id"`
	Outcome   string            `json:"outcome"`
	Reason    models.EmitReason `json:"reason,omitempty"`
	Signature string            `json:"signature,omitempty"`
	Count     int               `json:"count,omitempty"`
	Error     *eventError       `json:"error,omitempty"`
}

type eventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type batchTally struct {
	Received   int `json:"received"`
	Emitted    int `json:"emitted"`
	Suppressed int `json:"suppressed"`
	Noise      int `json:"noise"`
	Rejected   int `json:"rejected"`
}

type ingestResponse struct {
	batchTally
	Results []eventResult `json:"results"`
}

// NewIngestHandler returns an http.HandlerFunc for POST /api/v1/events.
// Per-event rejections are reported inline; the request itself succeeds.
func NewIngestHandler(d *ingest.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			Events []ingest.EventPayload `json:"events"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Events) == 0 {
			response.BadRequest(w, "INVALID_REQUEST", "events must not be empty")
			return
		}
		if len(req.Events) > maxEventsPerRequest {
			response.Error(w, http.StatusRequestEntityTooLarge, "TOO_MANY_EVENTS",
				"Too many events in one request", map[string]int{"max": maxEventsPerRequest})
			return
		}

		events := make([]models.Event, len(req.Events))
		for i, p := range req.Events {
			events[i] = p.Event()
		}
		results := d.Dispatch(r.Context(), tenantID, events)
		response.JSON(w, buildIngestResponse(results))
	}
}

func buildIngestResponse(results []engine.Result) ingestResponse {
	resp := ingestResponse{Results: make([]eventResult, 0, len(results))}
	resp.Received = len(results)
	for _, res := range results {
		er := eventResult{EventID: res.EventID}
		if res.Err != nil {
			resp.Rejected++
			er.Outcome = "rejected"
			er.Error = &eventError{Code: rejectionCode(res.Err), Message: res.Err.Error()}
			resp.Results = append(resp.Results, er)
			continue
		}

		er.Outcome = res.Decision.Outcome.String()
		er.Reason = res.Decision.Reason
		if g := res.Decision.Group; g != nil {
			er.Signature = g.Signature
			er.Count = g.Count
		}
		switch res.Decision.Outcome {
		case models.OutcomeEmit:
			resp.Emitted++
		case models.OutcomeSuppress:
			resp.Suppressed++
		case models.OutcomeNoise:
			resp.Noise++
		}
		resp.Results = append(resp.Results, er)
	}
	return resp
}

func rejectionCode(err error) string {
	switch {
	case errors.Is(err, models.ErrUnknownEventKind):
		return "UNKNOWN_EVENT_KIND"
	case errors.Is(err, models.ErrMalformedEvent):
		return "MALFORMED_EVENT"
	default:
		return "REJECTED"
	}
}
