// Package handler implements the HTTP handlers of the noisegate API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/noisegate/internal/api/middleware"
	"github.com/kiranshivaraju/noisegate/internal/api/response"
)

const maxBodyBytes = 5 << 20

func tenantFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := mw.GetTenantID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
	}
	return tenantID, ok
}

// decodeBody decodes a size-limited JSON body into v and writes the error
// response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
			return false
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, errors.New(name + " must be an integer between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi))
	}
	return n, nil
}

func queryDuration(r *http.Request, name string) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New(name + " must be a positive duration such as 30m")
	}
	return d, nil
}
