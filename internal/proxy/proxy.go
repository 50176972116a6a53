// Package proxy forwards gateway requests to backend services and
// relays their responses verbatim.
package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tunetrail/gateway/internal/registry"
)

// Request headers copied through to backends. Everything else stops at
// the gateway.
var forwardRequestHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"User-Agent",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Response headers relayed back to the caller.
var forwardResponseHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// GatewayName identifies this gateway to backends via X-Gateway.
const GatewayName = "TuneTrail-Gateway"

// Proxy holds no per-request state; a single instance serves all
// routes concurrently.
type Proxy struct {
	registry *registry.Registry
	client   *http.Client
	logger   *slog.Logger
}

// New builds a proxy over the given registry. Every outbound call is
// bounded by timeout and additionally tied to the inbound request
// context, so client disconnects cancel the backend call.
func New(reg *registry.Registry, timeout time.Duration, logger *slog.Logger) *Proxy {
	return &Proxy{
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Handler returns an http.Handler that forwards to the named service.
func (p *Proxy) Handler(service string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Forward(w, r, service)
	})
}

// Forward relays the request to the named backend. The inbound path
// /api/<service>/rest becomes /api/rest on the backend. The backend's
// status and body are relayed untouched; the gateway never rewrites
// payload bytes.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, service string) {
	route, err := p.registry.Resolve(service)
	if err != nil {
		if errors.Is(err, registry.ErrServiceNotFound) {
			writeJSONError(w, http.StatusNotFound, map[string]any{"error": "Service not found"})
			return
		}
		writeJSONError(w, http.StatusInternalServerError, map[string]any{"error": "Routing failure"})
		return
	}

	target := route.BaseURL + rewritePath(r.URL.Path, service)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		p.logger.Error("proxy request build failed",
			slog.String("service", service),
			slog.String("error", err.Error()))
		p.writeUnavailable(w, service)
		return
	}
	for _, name := range forwardRequestHeaders {
		if v := r.Header.Get(name); v != "" {
			out.Header.Set(name, v)
		}
	}
	out.Header.Set("X-Gateway", GatewayName)
	out.Header.Set("X-Forwarded-Host", r.Host)

	resp, err := p.client.Do(out)
	if err != nil {
		p.logger.Error("service proxy error",
			slog.String("service", service),
			slog.String("target", target),
			slog.String("error", err.Error()))
		p.writeUnavailable(w, service)
		return
	}
	defer resp.Body.Close()

	// Buffer the whole backend body before relaying anything, so a
	// mid-stream failure yields a clean gateway error instead of a
	// truncated response.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("service proxy read error",
			slog.String("service", service),
			slog.String("error", err.Error()))
		p.writeUnavailable(w, service)
		return
	}

	for _, name := range forwardResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(body); err != nil {
		p.logger.Warn("proxy response write failed",
			slog.String("service", service),
			slog.String("error", err.Error()))
	}
}

func (p *Proxy) writeUnavailable(w http.ResponseWriter, service string) {
	writeJSONError(w, http.StatusServiceUnavailable, map[string]any{
		"error":   "Service temporarily unavailable",
		"service": service,
	})
}

// rewritePath strips the /api/<service> prefix, leaving the path the
// backend expects: /api/profile/me -> /api/me, /api/playlist -> /api.
func rewritePath(path, service string) string {
	prefix := "/api/" + service
	rest := strings.TrimPrefix(path, prefix)
	return "/api" + rest
}

func writeJSONError(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
