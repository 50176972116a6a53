package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/tunetrail/gateway/internal/auth"
)

// identityKey is the context key for the resolved identity.
type identityKey struct{}

// AuthMiddleware validates the bearer token via the auth gate and
// injects the resolved identity into the request context. Failures
// short-circuit with the legacy error bodies; the surrounding logging
// middleware still records them.
func AuthMiddleware(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := gate.Authenticate(r.Context(), r)
			if err != nil {
				AddError(r.Context(), err)
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token required"})
				case errors.Is(err, auth.ErrUnavailable):
					writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "Authentication service unavailable"})
				default:
					writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid token"})
				}
				return
			}

			AddLogField(r.Context(), "user_id", strconv.FormatInt(identity.ID, 10))
			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the identity resolved by AuthMiddleware, or nil
// for unauthenticated requests.
func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(identityKey{}).(*auth.Identity); ok {
		return identity
	}
	return nil
}
