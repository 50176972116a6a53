package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full gateway configuration tree.
type Config struct {
	Server    ServerConfig      `koanf:"server"`
	Redis     RedisConfig       `koanf:"redis"`
	Identity  IdentityConfig    `koanf:"identity"`
	Auth      AuthConfig        `koanf:"auth"`
	RateLimit RateLimitConfig   `koanf:"rate_limit"`
	Proxy     ProxyConfig       `koanf:"proxy"`
	Health    HealthConfig      `koanf:"health"`
	Services  map[string]string `koanf:"services"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

// IdentityConfig points at the profile service, which doubles as the
// identity provider for the whole platform.
type IdentityConfig struct {
	BaseURL string `koanf:"base_url"`
}

type AuthConfig struct {
	// CacheTTLSeconds bounds how long a validated token identity is
	// served from the cache before revalidation.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`
}

type RateLimitConfig struct {
	Limit         int `koanf:"limit"`
	WindowSeconds int `koanf:"window_seconds"`
}

type ProxyConfig struct {
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

type HealthConfig struct {
	ProbeTimeoutSeconds int `koanf:"probe_timeout_seconds"`
}

// Load builds the configuration from an optional YAML file layered
// under GATEWAY_* environment variables. Nested keys use double
// underscores, e.g. GATEWAY_SERVER__PORT=8000.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	k.Set("server.port", 8000)
	k.Set("redis.url", "redis://localhost:6379")
	k.Set("identity.base_url", "http://localhost:8001")
	k.Set("auth.cache_ttl_seconds", 300)
	k.Set("rate_limit.limit", 100)
	k.Set("rate_limit.window_seconds", 60)
	k.Set("proxy.timeout_seconds", 30)
	k.Set("health.probe_timeout_seconds", 5)

	k.Set("services.profile", "http://localhost:8001")
	k.Set("services.playlist", "http://localhost:8002")
	k.Set("services.social", "http://localhost:8003")
	k.Set("services.media", "http://localhost:8004")
	k.Set("services.comment", "http://localhost:8005")
	k.Set("services.analytics", "http://localhost:8006")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.Auth.CacheTTLSeconds <= 0 {
		return fmt.Errorf("auth cache ttl must be positive, got %d", c.Auth.CacheTTLSeconds)
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("at least one service must be configured")
	}
	return nil
}
