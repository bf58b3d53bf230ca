package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/noisegate/internal/api/response"
)

// Recovery turns a handler panic into a 500 envelope. The request ID, when
// assigned by Logger, is echoed in the error details for correlation.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			attrs := []any{
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			}
			if tenantID, ok := GetTenantID(r); ok {
				attrs = append(attrs, "tenant_id", tenantID)
			}
			var details any
			if reqID := GetRequestID(r); reqID != "" {
				attrs = append(attrs, "request_id", reqID)
				details = map[string]string{"request_id": reqID}
			}
			slog.Error("panic recovered", attrs...)

			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", details)
		}()
		next.ServeHTTP(w, r)
	})
}
