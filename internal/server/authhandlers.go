package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/tunetrail/gateway/internal/auth"
)

// maxAuthBodyBytes bounds register/login payloads.
const maxAuthBodyBytes = 1 << 20

// handleRegister validates the registration payload and forwards the
// accepted fields to the identity service, relaying its reply.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodeAuthBody(w, r)
	if !ok {
		return
	}

	if fieldErrors := validateRegister(payload); len(fieldErrors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrors})
		return
	}

	// Forward only the fields registration needs.
	filtered := map[string]any{
		"name":     payload["name"],
		"email":    payload["email"],
		"password": payload["password"],
		"username": payload["username"],
	}
	body, err := json.Marshal(filtered)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}

	resp, err := s.identity.Register(r.Context(), body)
	if err != nil {
		AddError(r.Context(), err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"message": "Registration service unavailable",
			"error":   err.Error(),
		})
		return
	}
	if resp.Successful() {
		relayRaw(w, resp.StatusCode, resp.Body)
		return
	}

	s.logger.Error("register failed",
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", GetRequestID(r.Context())))
	writeJSON(w, resp.StatusCode, map[string]any{
		"message": "Registration failed",
		"errors":  rawOrString(resp.Body),
	})
}

// handleLogin validates credentials shape and relays the identity
// service's login reply, token included, untouched.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodeAuthBody(w, r)
	if !ok {
		return
	}

	if fieldErrors := validateLogin(payload); len(fieldErrors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrors})
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}

	resp, err := s.identity.Login(r.Context(), body)
	if err != nil {
		AddError(r.Context(), err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"message": "Authentication service unavailable",
			"error":   err.Error(),
		})
		return
	}
	if resp.Successful() {
		relayRaw(w, resp.StatusCode, resp.Body)
		return
	}

	writeJSON(w, resp.StatusCode, map[string]any{
		"message": "Login failed",
		"errors":  rawOrString(resp.Body),
	})
}

// handleLogout invalidates the cached identity for the presented token
// so the next use of it must revalidate against the identity service.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractBearer(r)
	if err == nil {
		if err := s.gate.Invalidate(r.Context(), token); err != nil {
			// The entry still expires by TTL; don't fail the logout.
			s.logger.Warn("logout cache invalidation failed",
				slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

// handleMe serves the identity resolved by the auth gate. Within the
// cache TTL this never touches the identity service.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token required"})
		return
	}
	relayRaw(w, http.StatusOK, identity.Raw)
}

func (s *Server) decodeAuthBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unreadable request body"})
		return nil, false
	}

	payload := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
			return nil, false
		}
	}
	return payload, true
}
