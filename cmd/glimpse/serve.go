package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/auth"
	"github.com/rhuss/glimpse/pkg/auth/apikey"
	"github.com/rhuss/glimpse/pkg/auth/jwt"
	"github.com/rhuss/glimpse/pkg/config"
	"github.com/rhuss/glimpse/pkg/mcptool"
	"github.com/rhuss/glimpse/pkg/playground"
	"github.com/rhuss/glimpse/pkg/ratelimit"
	"github.com/rhuss/glimpse/pkg/runner"
	"github.com/rhuss/glimpse/pkg/session"
	"github.com/rhuss/glimpse/pkg/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the playground, API reference and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Listen port (overrides config)")
	return cmd
}

// buildHandler wires the runner, session store, rate limiter and MCP
// server into the web handler.
func buildHandler(cfg *config.Config) (*web.Handler, *session.Store, error) {
	validation := api.ValidationConfig{MaxCodeSize: cfg.Runner.MaxCodeSize}

	client, err := runner.New(runner.Config{
		Endpoint:   cfg.Runner.Endpoint,
		Timeout:    cfg.Runner.Timeout,
		Validation: validation,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating runner client: %w", err)
	}

	sessions := session.New(session.Config{
		MaxSize:      cfg.Session.MaxSize,
		TTL:          cfg.Session.TTL,
		SecureCookie: cfg.Session.SecureCookie,
	}, func() *playground.Controller {
		return playground.New(client, playground.WithValidation(validation))
	})

	authn, err := buildAuthenticator(cfg.Auth)
	if err != nil {
		return nil, nil, err
	}

	webCfg := web.Config{
		Sessions:       sessions,
		Authenticator:  authn,
		RequiredScope:  cfg.Auth.RequiredScope,
		Limiter:        ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute, TrustForwardedFor: cfg.RateLimit.TrustForwardedFor}),
		Validation:     validation,
		RunnerEndpoint: client.Endpoint(),
	}
	if cfg.Observability.Metrics.Enabled {
		webCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	if cfg.MCP.Enabled {
		webCfg.MCPPath = cfg.MCP.Path
		webCfg.MCPHandler = mcptool.Handler(mcptool.NewServer(client, version))
	}

	h, err := web.NewHandler(webCfg)
	if err != nil {
		return nil, nil, err
	}
	return h, sessions, nil
}

// buildAuthenticator returns nil when the API is open.
func buildAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			keys = append(keys, apikey.Key{Key: k.Key, Subject: k.Subject, Scopes: k.Scopes})
		}
		return auth.Chain{apikey.New(keys)}, nil
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Secret:       cfg.JWT.Secret,
			JWKSURL:      cfg.JWT.JWKSURL,
			Issuer:       cfg.JWT.Issuer,
			Audience:     cfg.JWT.Audience,
			SubjectClaim: cfg.JWT.SubjectClaim,
			ScopesClaim:  cfg.JWT.ScopesClaim,
			Leeway:       cfg.JWT.Leeway,
			CacheTTL:     cfg.JWT.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		return auth.Chain{a}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	h, sessions, err := buildHandler(cfg)
	if err != nil {
		return err
	}

	go sessions.Run(ctx, cfg.Session.SweepInterval)

	slog.Info("glimpse front-end configured",
		"port", cfg.Server.Port,
		"runner", cfg.Runner.Endpoint,
		"rate_limit", cfg.RateLimit.RequestsPerMinute,
		"auth", cfg.Auth.Type,
		"mcp", cfg.MCP.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)

	srv := web.NewServer(h,
		web.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		web.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		web.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
	return srv.ListenAndServe(ctx)
}
