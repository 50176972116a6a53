// Package identity is the HTTP client for the profile service, which
// acts as the identity provider: registration, login, and bearer-token
// validation all terminate there.
package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken means the identity service rejected the token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnavailable means the identity service could not be reached
	// or did not answer within the timeout.
	ErrUnavailable = errors.New("identity service unavailable")
)

// Response carries a relayed identity-service reply. The gateway
// forwards status and body verbatim for register/login.
type Response struct {
	StatusCode int
	Body       []byte
}

// Successful reports whether the response status is in the 2xx range.
func (r *Response) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client talks to the profile service's identity endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the identity endpoints rooted at
// baseURL. All calls share the given timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Register forwards a registration payload and relays the reply.
func (c *Client) Register(ctx context.Context, payload []byte) (*Response, error) {
	return c.post(ctx, "/api/profile/register", payload)
}

// Login forwards a login payload and relays the reply.
func (c *Client) Login(ctx context.Context, payload []byte) (*Response, error) {
	return c.post(ctx, "/api/profile/login", payload)
}

// Whoami validates a bearer token and returns the raw identity payload.
func (c *Client) Whoami(ctx context.Context, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/profile/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build whoami request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidToken, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
