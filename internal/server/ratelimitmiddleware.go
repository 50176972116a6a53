package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tunetrail/gateway/internal/ratelimit"
)

// RateLimitMiddleware enforces the fixed-window limit per client. The
// key is the resolved user id when an identity is already in context,
// otherwise the source IP. Every response, allowed or rejected,
// carries the X-RateLimit-* headers derived from the same counter read.
// Redis trouble fails open: the request proceeds and the error is logged.
func RateLimitMiddleware(limiter *ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID int64
			if identity := GetIdentity(r.Context()); identity != nil {
				userID = identity.ID
			}
			key := ratelimit.Key(userID, r.RemoteAddr)

			result, err := limiter.Check(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					slog.String("key", key),
					slog.String("error", err.Error()))
				AddError(r.Context(), err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(result.Reset))

			if !result.Allowed {
				AddLogField(r.Context(), "rate_limited", key)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "Too many requests",
					"retry_after": result.RetryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
