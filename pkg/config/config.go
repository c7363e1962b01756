// Package config provides unified configuration for the glimpse front-end.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (GLIMPSE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/ratelimit"
	"github.com/rhuss/glimpse/pkg/runner"
)

// Config holds all configuration for the glimpse front-end.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Runner        RunnerConfig        `yaml:"runner"`
	Session       SessionConfig       `yaml:"session"`
	RateLimit     RateLimitConfig     `yaml:"ratelimit"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
}

// RunnerConfig describes the remote execution endpoint.
type RunnerConfig struct {
	Endpoint    string        `yaml:"endpoint"`      // default: runner.DefaultEndpoint
	Timeout     time.Duration `yaml:"timeout"`       // default: 45s
	MaxCodeSize int           `yaml:"max_code_size"` // default: 1 MiB
}

// SessionConfig holds visitor session settings.
type SessionConfig struct {
	MaxSize       int           `yaml:"max_size"`       // default: 10000
	TTL           time.Duration `yaml:"ttl"`            // default: 1h
	SweepInterval time.Duration `yaml:"sweep_interval"` // default: 1m
	SecureCookie  bool          `yaml:"secure_cookie"`
}

// RateLimitConfig holds per-client limits on code runs.
type RateLimitConfig struct {
	RequestsPerMinute int  `yaml:"requests_per_minute"` // default: 30, 0 disables
	TrustForwardedFor bool `yaml:"trust_forwarded_for"` // default: false, enable only behind a trusted proxy
}

// AuthConfig guards the JSON run API and the MCP endpoint. The browser
// playground is never authenticated.
type AuthConfig struct {
	Type          string         `yaml:"type"`           // "none", "apikey" or "jwt", default: "none"
	RequiredScope string         `yaml:"required_scope"` // optional scope every caller must hold
	APIKeys       []APIKeyConfig `yaml:"api_keys"`       // entries for type=apikey
	JWT           JWTConfig      `yaml:"jwt"`            // settings for type=jwt
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string   `yaml:"key" json:"key"`
	KeyFile string   `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string   `yaml:"subject" json:"subject"`
	Scopes  []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig describes how bearer JWTs are verified.
type JWTConfig struct {
	Secret       string        `yaml:"secret"`
	SecretFile   string        `yaml:"secret_file"` // _file variant for secret
	JWKSURL      string        `yaml:"jwks_url"`
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	SubjectClaim string        `yaml:"subject_claim"` // default: "sub"
	ScopesClaim  string        `yaml:"scopes_claim"`  // default: "scope"
	Leeway       time.Duration `yaml:"leeway"`
	CacheTTL     time.Duration `yaml:"cache_ttl"` // default: 1h
}

// MCPConfig holds the MCP tool endpoint settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "INFO"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Runner: RunnerConfig{
			Endpoint:    runner.DefaultEndpoint,
			Timeout:     45 * time.Second,
			MaxCodeSize: api.MaxCodeSize,
		},
		Session: SessionConfig{
			MaxSize:       10000,
			TTL:           time.Hour,
			SweepInterval: time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: ratelimit.DefaultRequestsPerMinute,
			TrustForwardedFor: false,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
