package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/api/response"
	"github.com/kiranshivaraju/noisegate/internal/cache"
)

const (
	defaultRequestsPerMinute = 60
	rateWindow               = time.Minute
)

// RateLimit is a fixed one-minute window limiter per API key, counted in Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	now            func() time.Time
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, now: time.Now}
}

// Limit applies rate limiting based on the key_prefix set by auth middleware.
// Redis errors fail open.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		windowStart := rl.now().Truncate(rateWindow)
		resetAt := windowStart.Add(rateWindow)

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(prefix, windowStart), rateWindow+time.Second)
		if err != nil {
			slog.Warn("rate limit check failed, allowing request", "key_prefix", prefix, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			retryAfter := int(resetAt.Sub(rl.now()).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
