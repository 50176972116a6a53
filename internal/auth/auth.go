// Package auth validates bearer tokens for the gateway. Tokens are
// opaque: validation happens against the identity service, with a
// short-TTL Redis cache in front so the dominant path never leaves
// the process boundary more than once per token per TTL.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingToken means no bearer token was presented.
	ErrMissingToken = errors.New("token required")
	// ErrInvalidToken means the token was rejected by the identity service.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnavailable means token validity could not be determined.
	ErrUnavailable = errors.New("authentication service unavailable")
	// ErrCacheMiss is returned by the token cache when no entry exists.
	ErrCacheMiss = errors.New("token not cached")
)

// Identity is a resolved user identity. Raw is the identity service's
// payload, relayed untouched to callers that ask for their profile.
type Identity struct {
	ID  int64
	Raw json.RawMessage
}

// ParseIdentity extracts the numeric user id from an identity payload.
func ParseIdentity(raw []byte) (*Identity, error) {
	var payload struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode identity payload: %w", err)
	}
	id, err := payload.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("identity payload has no numeric id: %w", err)
	}
	return &Identity{ID: id, Raw: json.RawMessage(raw)}, nil
}

// ExtractBearer pulls the bearer token out of the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

// HashToken returns the SHA-256 hex digest used as the cache key.
// Raw tokens are never stored or logged.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
