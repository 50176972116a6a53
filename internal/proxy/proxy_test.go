package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tunetrail/gateway/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwardRelaysVerbatim(t *testing.T) {
	payload := []byte(`{"tracks":[1,2,3],"cover":"é"}`)

	var seen *http.Request
	var seenBody []byte
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
		seenBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"v7"`)
		w.Header().Set("X-Internal-Secret", "do-not-leak")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(payload)
	}))
	defer backend.Close()

	reg := registry.New(map[string]string{"playlist": backend.URL})
	p := New(reg, 5*time.Second, testLogger())

	body := []byte(`{"name":"road trip"}`)
	req := httptest.NewRequest("POST", "/api/playlist/42/songs?dedupe=1", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", "session=abc")
	rec := httptest.NewRecorder()

	p.Forward(rec, req, "playlist")

	// Backend sees the stripped path, the query, the allow-listed
	// headers, and the gateway identification headers.
	if seen.URL.Path != "/api/42/songs" {
		t.Errorf("backend path = %q, want /api/42/songs", seen.URL.Path)
	}
	if seen.URL.RawQuery != "dedupe=1" {
		t.Errorf("backend query = %q", seen.URL.RawQuery)
	}
	if seen.Header.Get("Authorization") != "Bearer tok" {
		t.Error("Authorization header not forwarded")
	}
	if seen.Header.Get("Cookie") != "" {
		t.Error("Cookie header forwarded, want stripped")
	}
	if seen.Header.Get("X-Gateway") != GatewayName {
		t.Errorf("X-Gateway = %q", seen.Header.Get("X-Gateway"))
	}
	if seen.Header.Get("X-Forwarded-Host") == "" {
		t.Error("X-Forwarded-Host not set")
	}
	if !bytes.Equal(seenBody, body) {
		t.Error("request body altered in transit")
	}

	// Caller sees status, body, and allow-listed headers untouched.
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body = %q, want byte-identical relay", rec.Body.Bytes())
	}
	if rec.Header().Get("ETag") != `"v7"` {
		t.Error("ETag not relayed")
	}
	if rec.Header().Get("X-Internal-Secret") != "" {
		t.Error("internal backend header leaked to caller")
	}
}

func TestForwardErrorStatusRelayedVerbatim(t *testing.T) {
	errorBody := []byte(`{"errors":{"name":["The name field is required."]}}`)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write(errorBody)
	}))
	defer backend.Close()

	reg := registry.New(map[string]string{"profile": backend.URL})
	p := New(reg, 5*time.Second, testLogger())

	rec := httptest.NewRecorder()
	p.Forward(rec, httptest.NewRequest("POST", "/api/profile/update", nil), "profile")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 relayed", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), errorBody) {
		t.Error("backend validation error body rewritten, want verbatim relay")
	}
}

func TestForwardUnknownService(t *testing.T) {
	reg := registry.New(map[string]string{"profile": "http://localhost:8001"})
	p := New(reg, 5*time.Second, testLogger())

	rec := httptest.NewRecorder()
	p.Forward(rec, httptest.NewRequest("GET", "/api/nope/x", nil), "nope")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Service not found") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestForwardBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // unreachable on purpose

	reg := registry.New(map[string]string{"media": backend.URL})
	p := New(reg, 2*time.Second, testLogger())

	rec := httptest.NewRecorder()
	p.Forward(rec, httptest.NewRequest("GET", "/api/media/files/1", nil), "media")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["service"] != "media" {
		t.Errorf("error payload service = %v, want media named", body["service"])
	}
}

func TestRewritePath(t *testing.T) {
	tests := []struct {
		path    string
		service string
		want    string
	}{
		{"/api/profile/me", "profile", "/api/me"},
		{"/api/playlist", "playlist", "/api"},
		{"/api/playlist/", "playlist", "/api/"},
		{"/api/social/posts/9/like", "social", "/api/posts/9/like"},
	}
	for _, tt := range tests {
		if got := rewritePath(tt.path, tt.service); got != tt.want {
			t.Errorf("rewritePath(%q, %q) = %q, want %q", tt.path, tt.service, got, tt.want)
		}
	}
}
