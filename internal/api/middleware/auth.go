package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefixLen is the number of leading key characters stored in clear for lookup.
const KeyPrefixLen = 8

// Scope names checked by RequireScope.
const (
	ScopeIngest = models.ScopeIngest
	ScopeRead   = models.ScopeRead
	ScopeAdmin  = models.ScopeAdmin
)

const lastUsedTimeout = 5 * time.Second

// KeyStore is the subset of the store the auth middleware needs.
type KeyStore interface {
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	store KeyStore
}

// NewAuth creates a new Auth middleware.
func NewAuth(s KeyStore) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer token against the bcrypt hashes stored
// for its prefix and sets tenant_id, key_prefix and scopes in the request
// context. The tenant ID selects which grouping engine handles the request.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < KeyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		prefix := rawKey[:KeyPrefixLen]

		keys, err := a.store.GetAPIKeyByPrefix(r.Context(), prefix)
		if err != nil {
			slog.Error("api key lookup failed", "key_prefix", prefix, "error", err)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		var matched *models.APIKey
		for _, key := range keys {
			if key.Revoked() {
				continue
			}
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
				matched = key
				break
			}
		}
		if matched == nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		go a.touch(matched.ID)

		ctx := SetTenantID(r.Context(), matched.TenantID)
		ctx = SetKeyPrefix(ctx, prefix)
		ctx = SetScopes(ctx, matched.Scopes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) touch(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
	defer cancel()
	if err := a.store.UpdateAPIKeyLastUsed(ctx, id); err != nil {
		slog.Warn("update api key last used failed", "key_id", id, "error", err)
	}
}

// RequireScope returns middleware that checks whether the authenticated
// API key has the specified scope. Admin keys pass every scope check.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if HasScope(r, scope) {
				next.ServeHTTP(w, r)
				return
			}
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", map[string]string{"required_scope": scope})
		})
	}
}

// HasScope reports whether the request's API key carries scope or admin.
func HasScope(r *http.Request, scope string) bool {
	return models.GrantsScope(getScopes(r), scope)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
