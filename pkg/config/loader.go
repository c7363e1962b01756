package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/glimpse/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, GLIMPSE_CONFIG env, ./config.yaml, /etc/glimpse/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. GLIMPSE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/glimpse/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("GLIMPSE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/glimpse/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps GLIMPSE_* environment variables to config fields.
// Unparseable numeric, boolean or duration values are reported.
func applyEnvOverrides(cfg *Config) error {
	e := envReader{}

	e.int("GLIMPSE_PORT", &cfg.Server.Port)
	e.duration("GLIMPSE_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	e.duration("GLIMPSE_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.duration("GLIMPSE_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	e.string("GLIMPSE_RUNNER_ENDPOINT", &cfg.Runner.Endpoint)
	e.duration("GLIMPSE_RUNNER_TIMEOUT", &cfg.Runner.Timeout)
	e.int("GLIMPSE_MAX_CODE_SIZE", &cfg.Runner.MaxCodeSize)

	e.int("GLIMPSE_SESSION_MAX_SIZE", &cfg.Session.MaxSize)
	e.duration("GLIMPSE_SESSION_TTL", &cfg.Session.TTL)
	e.bool("GLIMPSE_SECURE_COOKIE", &cfg.Session.SecureCookie)

	e.int("GLIMPSE_RATE_LIMIT", &cfg.RateLimit.RequestsPerMinute)
	e.bool("GLIMPSE_TRUST_FORWARDED_FOR", &cfg.RateLimit.TrustForwardedFor)

	e.string("GLIMPSE_AUTH_TYPE", &cfg.Auth.Type)
	e.apiKeys("GLIMPSE_API_KEYS", &cfg.Auth.APIKeys)
	e.string("GLIMPSE_JWT_SECRET", &cfg.Auth.JWT.Secret)
	e.string("GLIMPSE_JWT_JWKS_URL", &cfg.Auth.JWT.JWKSURL)

	e.bool("GLIMPSE_MCP_ENABLED", &cfg.MCP.Enabled)
	e.bool("GLIMPSE_METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)

	e.string("GLIMPSE_LOG_LEVEL", &cfg.Log.Level)
	e.string("GLIMPSE_DEBUG", &cfg.Log.Debug)
	e.string("GLIMPSE_LOG_FORMAT", &cfg.Log.Format)

	return e.err()
}

// envReader collects parse failures so that all bad variables are
// reported at once.
type envReader struct {
	errs []error
}

func (e *envReader) string(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = n
}

func (e *envReader) bool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = b
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = d
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// apiKeys parses a JSON array of API key entries.
func (e *envReader) apiKeys(name string, dst *[]APIKeyConfig) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(v), &keys); err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = keys
}

// resolveFileReferences reads _file fields into their value fields. A
// value set directly wins over its file.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		if k.KeyFile != "" && k.Key == "" {
			val, err := readSecretFile(k.KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			k.Key = val
		}
	}

	if j := &cfg.Auth.JWT; j.SecretFile != "" && j.Secret == "" {
		val, err := readSecretFile(j.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		j.Secret = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
