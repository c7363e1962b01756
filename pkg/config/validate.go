package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Runner.Endpoint == "" {
		errs = append(errs, fmt.Errorf("runner.endpoint is required"))
	} else if u, err := url.Parse(c.Runner.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("runner.endpoint must be an absolute http(s) URL, got %q", c.Runner.Endpoint))
	}
	if c.Runner.Timeout < 0 {
		errs = append(errs, fmt.Errorf("runner.timeout must be >= 0, got %v", c.Runner.Timeout))
	}
	if c.Runner.MaxCodeSize <= 0 {
		errs = append(errs, fmt.Errorf("runner.max_code_size must be > 0, got %d", c.Runner.MaxCodeSize))
	}

	if c.Session.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("session.max_size must be >= 0, got %d", c.Session.MaxSize))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be >= 0, got %v", c.Session.TTL))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ratelimit.requests_per_minute must be >= 0, got %d", c.RateLimit.RequestsPerMinute))
	}

	switch c.Auth.Type {
	case "", "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwt: secret, secret_file or jwks_url is required when auth.type is \"jwt\""))
		}
		if c.Auth.JWT.JWKSURL != "" {
			if u, err := url.Parse(c.Auth.JWT.JWKSURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Errorf("auth.jwt.jwks_url must be an absolute http(s) URL, got %q", c.Auth.JWT.JWKSURL))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be one of none, apikey, jwt, got %q", c.Auth.Type))
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path must start with \"/\", got %q", c.MCP.Path))
	}
	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToUpper(c.Log.Level) {
	case "", "TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of TRACE, DEBUG, INFO, WARN, ERROR, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
