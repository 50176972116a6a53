package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Auth.CacheTTLSeconds != 300 {
		t.Errorf("Auth.CacheTTLSeconds = %d, want 300", cfg.Auth.CacheTTLSeconds)
	}
	if cfg.RateLimit.Limit != 100 || cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("RateLimit = %+v, want 100/60", cfg.RateLimit)
	}
	if len(cfg.Services) != 6 {
		t.Fatalf("len(Services) = %d, want 6", len(cfg.Services))
	}
	for _, name := range []string{"profile", "playlist", "social", "media", "comment", "analytics"} {
		if cfg.Services[name] == "" {
			t.Errorf("Services[%q] missing", name)
		}
	}
	if cfg.Services["social"] != "http://localhost:8003" {
		t.Errorf("Services[social] = %q, want http://localhost:8003", cfg.Services["social"])
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GATEWAY_SERVER__PORT", "9000")
	t.Setenv("GATEWAY_RATE_LIMIT__LIMIT", "5")
	t.Setenv("GATEWAY_IDENTITY__BASE_URL", "http://identity:9001")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.RateLimit.Limit != 5 {
		t.Errorf("RateLimit.Limit = %d, want 5", cfg.RateLimit.Limit)
	}
	if cfg.Identity.BaseURL != "http://identity:9001" {
		t.Errorf("Identity.BaseURL = %q", cfg.Identity.BaseURL)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	data := []byte("server:\n  port: 8088\nservices:\n  profile: http://profile:8001\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Services["profile"] != "http://profile:8001" {
		t.Errorf("Services[profile] = %q", cfg.Services["profile"])
	}
	// Untouched defaults survive the file layer.
	if cfg.Services["comment"] != "http://localhost:8005" {
		t.Errorf("Services[comment] = %q", cfg.Services["comment"])
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("GATEWAY_RATE_LIMIT__LIMIT", "-1")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() accepted a negative rate limit")
	}
}
