package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	tenantIDKey     contextKey = "tenant_id"
	keyPrefixKey    contextKey = "key_prefix"
	apiKeyScopesKey contextKey = "api_key_scopes"
	requestIDKey    contextKey = "request_id"
)

func SetTenantID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

func GetTenantID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(tenantIDKey).(uuid.UUID)
	return id, ok
}

// SetKeyPrefix stores the authenticated key prefix used for rate limiting.
func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

// SetScopes stores the scopes of the authenticated key.
func SetScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}

func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
