package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tunetrail/gateway/internal/identity"
)

// Verifier validates a bearer token remotely and returns the raw
// identity payload. Satisfied by *identity.Client.
type Verifier interface {
	Whoami(ctx context.Context, token string) ([]byte, error)
}

// Gate authenticates requests: cache first, identity service on miss.
type Gate struct {
	cache    *TokenCache
	verifier Verifier
	logger   *slog.Logger
}

// NewGate wires the token cache and identity verifier together.
func NewGate(cache *TokenCache, verifier Verifier, logger *slog.Logger) *Gate {
	return &Gate{cache: cache, verifier: verifier, logger: logger}
}

// Authenticate resolves the identity behind the request's bearer token.
// It returns ErrMissingToken when no token is presented, ErrInvalidToken
// when the identity service rejects it, and ErrUnavailable when the
// identity service cannot be reached. Nothing is cached on failure.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	token, err := ExtractBearer(r)
	if err != nil {
		return nil, err
	}
	return g.AuthenticateToken(ctx, token)
}

// AuthenticateToken is Authenticate for an already-extracted token.
func (g *Gate) AuthenticateToken(ctx context.Context, token string) (*Identity, error) {
	tokenHash := HashToken(token)

	cached, err := g.cache.Get(ctx, tokenHash)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// Redis trouble: the cache is read-through only, so fall back
		// to validating against the identity service.
		g.logger.Warn("token cache unavailable", slog.String("error", err.Error()))
	}

	raw, err := g.verifier.Whoami(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	resolved, err := ParseIdentity(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := g.cache.Put(ctx, tokenHash, raw); err != nil {
		g.logger.Warn("token cache put failed", slog.String("error", err.Error()))
	}
	return resolved, nil
}

// Invalidate drops the cached identity for a token. Used by logout so a
// revoked token forces a fresh identity-service lookup.
func (g *Gate) Invalidate(ctx context.Context, token string) error {
	return g.cache.Invalidate(ctx, HashToken(token))
}
