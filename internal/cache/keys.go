package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LokiCursorKey scopes a poller cursor to a tenant and a stream selector.
// The selector is hashed so arbitrary LogQL stays a valid key.
func LokiCursorKey(tenantID uuid.UUID, stream string) string {
	sum := sha256.Sum256([]byte(stream))
	return fmt.Sprintf("loki:cursor:%s:%s", tenantID, hex.EncodeToString(sum[:8]))
}

// RateLimitKey buckets a key's requests by the start of its rate window.
func RateLimitKey(keyPrefix string, window time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", keyPrefix, window.Unix())
}
