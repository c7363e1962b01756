package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/glimpse/pkg/runner"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("default server.shutdown_timeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Runner.Endpoint != runner.DefaultEndpoint {
		t.Errorf("default runner.endpoint = %q", cfg.Runner.Endpoint)
	}
	if cfg.Runner.MaxCodeSize != 1<<20 {
		t.Errorf("default runner.max_code_size = %d, want 1 MiB", cfg.Runner.MaxCodeSize)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("default ratelimit.requests_per_minute = %d, want 30", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.RateLimit.TrustForwardedFor {
		t.Error("default ratelimit.trust_forwarded_for should be false")
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("default session.ttl = %v, want 1h", cfg.Session.TTL)
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("default auth.type = %q, want none", cfg.Auth.Type)
	}
	if !cfg.MCP.Enabled || cfg.MCP.Path != "/mcp" {
		t.Errorf("default mcp = %+v", cfg.MCP)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("default metrics = %+v", cfg.Observability.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
server:
  port: 9090
  read_timeout: 10s
  shutdown_timeout: 5s
runner:
  endpoint: http://localhost:9000/run-code-lambda
  timeout: 20s
  max_code_size: 2048
session:
  max_size: 50
  ttl: 10m
  secure_cookie: true
ratelimit:
  requests_per_minute: 5
  trust_forwarded_for: true
mcp:
  enabled: false
observability:
  metrics:
    path: /internal/metrics
log:
  level: debug
  debug: runner,web
  format: json
`
	cfg, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.ReadTimeout != 10*time.Second || cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("server.write_timeout should keep its default, got %v", cfg.Server.WriteTimeout)
	}
	want := RunnerConfig{Endpoint: "http://localhost:9000/run-code-lambda", Timeout: 20 * time.Second, MaxCodeSize: 2048}
	if cfg.Runner != want {
		t.Errorf("runner = %+v, want %+v", cfg.Runner, want)
	}
	if cfg.Session.MaxSize != 50 || cfg.Session.TTL != 10*time.Minute || !cfg.Session.SecureCookie {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.RateLimit.RequestsPerMinute != 5 || !cfg.RateLimit.TrustForwardedFor {
		t.Errorf("ratelimit = %+v", cfg.RateLimit)
	}
	if cfg.MCP.Enabled {
		t.Error("mcp.enabled should be false")
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/internal/metrics" {
		t.Errorf("metrics = %+v", cfg.Observability.Metrics)
	}
	if cfg.Log != (LogConfig{Level: "debug", Debug: "runner,web", Format: "json"}) {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestEnvOverride(t *testing.T) {
	tmpFile := writeTemp(t, "config-*.yaml", `
server:
  port: 9090
runner:
  endpoint: http://from-yaml:9000/run-code-lambda
`)

	t.Setenv("GLIMPSE_PORT", "7070")
	t.Setenv("GLIMPSE_RUNNER_ENDPOINT", "http://from-env:9000/run-code-lambda")
	t.Setenv("GLIMPSE_RUNNER_TIMEOUT", "3s")
	t.Setenv("GLIMPSE_RATE_LIMIT", "0")
	t.Setenv("GLIMPSE_MCP_ENABLED", "false")
	t.Setenv("GLIMPSE_SESSION_TTL", "2h")

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want env value 7070", cfg.Server.Port)
	}
	if cfg.Runner.Endpoint != "http://from-env:9000/run-code-lambda" {
		t.Errorf("runner.endpoint = %q, want env value", cfg.Runner.Endpoint)
	}
	if cfg.Runner.Timeout != 3*time.Second {
		t.Errorf("runner.timeout = %v", cfg.Runner.Timeout)
	}
	if cfg.RateLimit.RequestsPerMinute != 0 {
		t.Errorf("ratelimit.requests_per_minute = %d, want 0", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.MCP.Enabled {
		t.Error("mcp.enabled should be overridden to false")
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("session.ttl = %v", cfg.Session.TTL)
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("GLIMPSE_CONFIG", "")
	t.Setenv("GLIMPSE_PORT", "eighty")
	t.Setenv("GLIMPSE_SESSION_TTL", "forever")

	_, err := Load(writeTemp(t, "config-*.yaml", "{}\n"))
	if err == nil {
		t.Fatal("expected error for unparseable env values")
	}
	for _, name := range []string{"GLIMPSE_PORT", "GLIMPSE_SESSION_TTL"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should mention %s", err, name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/missing.yaml")
	if err == nil || !strings.Contains(err.Error(), "loading config file") {
		t.Errorf("expected loading error, got %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTemp(t, "config-*.yaml", "server: [unclosed\n"))
	if err == nil {
		t.Error("expected parse error")
	}
}

func TestFileDiscovery(t *testing.T) {
	// Explicit path.
	tmpFile := writeTemp(t, "config-*.yaml", `
runner:
  endpoint: http://explicit:8000/run-code-lambda
`)
	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load(explicit) error: %v", err)
	}
	if cfg.Runner.Endpoint != "http://explicit:8000/run-code-lambda" {
		t.Errorf("explicit path: endpoint = %q", cfg.Runner.Endpoint)
	}

	// GLIMPSE_CONFIG env var.
	envFile := writeTemp(t, "envconfig-*.yaml", `
runner:
  endpoint: http://env-config:8000/run-code-lambda
`)
	t.Setenv("GLIMPSE_CONFIG", envFile)

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(GLIMPSE_CONFIG) error: %v", err)
	}
	if cfg.Runner.Endpoint != "http://env-config:8000/run-code-lambda" {
		t.Errorf("GLIMPSE_CONFIG: endpoint = %q", cfg.Runner.Endpoint)
	}

	// No file at all: defaults.
	t.Setenv("GLIMPSE_CONFIG", "")
	if path := discoverConfigFile(""); path != "" {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("discovered non-existent file %q", path)
		}
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be between 1 and 65535",
		},
		{
			name:    "missing endpoint",
			modify:  func(c *Config) { c.Runner.Endpoint = "" },
			wantErr: "runner.endpoint is required",
		},
		{
			name:    "relative endpoint",
			modify:  func(c *Config) { c.Runner.Endpoint = "/run-code-lambda" },
			wantErr: "runner.endpoint must be an absolute http(s) URL",
		},
		{
			name:    "zero code size",
			modify:  func(c *Config) { c.Runner.MaxCodeSize = 0 },
			wantErr: "runner.max_code_size must be > 0",
		},
		{
			name:    "negative rate limit",
			modify:  func(c *Config) { c.RateLimit.RequestsPerMinute = -1 },
			wantErr: "ratelimit.requests_per_minute",
		},
		{
			name:    "mcp path without slash",
			modify:  func(c *Config) { c.MCP.Path = "mcp" },
			wantErr: "mcp.path must start with",
		},
		{
			name:    "disabled mcp ignores path",
			modify:  func(c *Config) { c.MCP.Enabled = false; c.MCP.Path = "" },
			wantErr: "",
		},
		{
			name:    "unknown auth type",
			modify:  func(c *Config) { c.Auth.Type = "oauth" },
			wantErr: "auth.type must be one of",
		},
		{
			name:    "apikey without keys",
			modify:  func(c *Config) { c.Auth.Type = "apikey" },
			wantErr: "auth.api_keys must not be empty",
		},
		{
			name: "apikey entry without key",
			modify: func(c *Config) {
				c.Auth.Type = "apikey"
				c.Auth.APIKeys = []APIKeyConfig{{Subject: "ci"}}
			},
			wantErr: "auth.api_keys[0]: key or key_file is required",
		},
		{
			name:    "jwt without key source",
			modify:  func(c *Config) { c.Auth.Type = "jwt" },
			wantErr: "auth.jwt: secret, secret_file or jwks_url is required",
		},
		{
			name: "jwt relative jwks url",
			modify: func(c *Config) {
				c.Auth.Type = "jwt"
				c.Auth.JWT.JWKSURL = "/keys"
			},
			wantErr: "auth.jwt.jwks_url must be an absolute",
		},
		{
			name: "jwt with secret",
			modify: func(c *Config) {
				c.Auth.Type = "jwt"
				c.Auth.JWT.Secret = "s3cret"
			},
			wantErr: "",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level must be one of",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format must be",
		},
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Runner.Endpoint = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "runner.endpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestAuthFromYAMLWithFileReferences(t *testing.T) {
	dir := t.TempDir()
	keyFile := dir + "/ci.key"
	if err := os.WriteFile(keyFile, []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	secretFile := dir + "/jwt.secret"
	if err := os.WriteFile(secretFile, []byte("  jwt-secret  "), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeTemp(t, "config-*.yaml", `
auth:
  type: apikey
  required_scope: run
  api_keys:
    - key: sk-inline
      subject: alice
      scopes: [run]
    - key_file: `+keyFile+`
      subject: ci
  jwt:
    secret_file: `+secretFile+`
    leeway: 30s
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Auth.Type != "apikey" || cfg.Auth.RequiredScope != "run" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if len(cfg.Auth.APIKeys) != 2 {
		t.Fatalf("api_keys = %+v", cfg.Auth.APIKeys)
	}
	if cfg.Auth.APIKeys[0].Key != "sk-inline" || cfg.Auth.APIKeys[0].Scopes[0] != "run" {
		t.Errorf("api_keys[0] = %+v", cfg.Auth.APIKeys[0])
	}
	if cfg.Auth.APIKeys[1].Key != "sk-from-file" {
		t.Errorf("api_keys[1].key = %q, want trimmed file content", cfg.Auth.APIKeys[1].Key)
	}
	if cfg.Auth.JWT.Secret != "jwt-secret" || cfg.Auth.JWT.Leeway != 30*time.Second {
		t.Errorf("jwt = %+v", cfg.Auth.JWT)
	}
}

func TestAuthMissingSecretFile(t *testing.T) {
	_, err := Load(writeTemp(t, "config-*.yaml", `
auth:
  type: apikey
  api_keys:
    - key_file: /nonexistent/glimpse.key
`))
	if err == nil || !strings.Contains(err.Error(), "auth.api_keys[0].key_file") {
		t.Errorf("err = %v, want key_file error", err)
	}
}

func TestAuthEnvOverride(t *testing.T) {
	t.Setenv("GLIMPSE_AUTH_TYPE", "apikey")
	t.Setenv("GLIMPSE_API_KEYS", `[{"key":"sk-env","subject":"env","scopes":["run"]}]`)

	cfg, err := Load(writeTemp(t, "config-*.yaml", ""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.Type != "apikey" || len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Subject != "env" {
		t.Errorf("auth = %+v", cfg.Auth)
	}

	t.Setenv("GLIMPSE_API_KEYS", `not json`)
	if _, err := Load(writeTemp(t, "config-*.yaml", "")); err == nil || !strings.Contains(err.Error(), "GLIMPSE_API_KEYS") {
		t.Errorf("err = %v, want GLIMPSE_API_KEYS parse error", err)
	}
}

// writeTemp creates a temporary file with the given content and returns its path.
func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return f.Name()
}
