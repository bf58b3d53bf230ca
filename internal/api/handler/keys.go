package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/noisegate/internal/api/middleware"
	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/store"
	"github.com/kiranshivaraju/noisegate/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix starts every generated API key.
const KeyPrefix = "ng_"

// KeyStore is the store subset used by the admin key handlers.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
}

// GenerateKey returns a new raw API key and its bcrypt hash.
func GenerateKey() (raw, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}
	raw = KeyPrefix + hex.EncodeToString(buf)
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash key: %w", err)
	}
	return raw, string(h), nil
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key is only returned in this response.
func NewCreateKeyHandler(s KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.BadRequest(w, "INVALID_REQUEST", "name is required")
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = models.DefaultScopes()
		}
		for _, sc := range req.Scopes {
			if !models.ValidScope(sc) {
				response.Error(w, http.StatusBadRequest, "INVALID_SCOPE",
					"Unknown scope", map[string]any{"scope": sc, "valid": models.AllScopes})
				return
			}
		}

		raw, hash, err := GenerateKey()
		if err != nil {
			response.Internal(w, "Failed to create key")
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Name:      req.Name,
			KeyHash:   hash,
			KeyPrefix: raw[:mw.KeyPrefixLen],
			Scopes:    req.Scopes,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateAPIKey(r.Context(), key); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "API key with this name already exists", nil)
				return
			}
			response.Internal(w, "Failed to create key")
			return
		}

		response.Created(w, map[string]any{
			"id":         key.ID,
			"name":       key.Name,
			"key":        raw,
			"key_prefix": key.KeyPrefix,
			"scopes":     key.Scopes,
			"created_at": key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(s KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		keys, err := s.ListAPIKeys(r.Context(), tenantID)
		if err != nil {
			response.Internal(w, "Failed to list keys")
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(s KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFrom(w, r)
		if !ok {
			return
		}

		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.BadRequest(w, "INVALID_KEY_ID", "Invalid key ID format")
			return
		}

		if err := s.RevokeAPIKey(r.Context(), keyID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found", nil)
				return
			}
			response.Internal(w, "Failed to revoke key")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
