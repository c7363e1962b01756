package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/debug"
	"github.com/rhuss/glimpse/pkg/observability"
)

// DefaultEndpoint is the public Glimpse execution endpoint.
const DefaultEndpoint = "https://glimpse-7eir.onrender.com/run-code-lambda"

// Sentinel errors. Every error returned by Run (other than local validation
// failures, which are *api.APIError) wraps exactly one of these.
var (
	// ErrTransport covers network failures and cancelled requests.
	ErrTransport = errors.New("runner transport failure")

	// ErrEnvelope is returned when a 2xx response cannot be decoded.
	ErrEnvelope = errors.New("runner returned a malformed envelope")

	// ErrStatus is returned for failing responses (non-2xx HTTP or an
	// envelope statusCode of 400 and above) that carry no error text.
	ErrStatus = errors.New("runner returned an error status")
)

// Config configures a Client.
type Config struct {
	// Endpoint is the full URL of the execution endpoint.
	Endpoint string

	// Timeout bounds the whole HTTP exchange. Zero means no client-side
	// limit; the remote side enforces its own execution limit.
	Timeout time.Duration

	// MaxResponseSize caps how many response bytes are read. Default: 4 MiB.
	MaxResponseSize int64

	// Validation limits applied before a request leaves the process.
	Validation api.ValidationConfig

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// RateLimit holds the X-RateLimit-* headers of a response.
type RateLimit struct {
	Present   bool
	Limit     int
	Remaining int
	Reset     int64
}

// Response is a decoded runner reply.
type Response struct {
	Result     *api.ExecutionResult
	HTTPStatus int
	StatusCode int // statusCode field of the envelope
	RateLimit  RateLimit
	Duration   time.Duration
}

// Client posts execution requests to the remote runner.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxResp    int64
	validation api.ValidationConfig
}

// New creates a runner client. The endpoint must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", cfg.Endpoint)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	maxResp := cfg.MaxResponseSize
	if maxResp <= 0 {
		maxResp = 4 << 20
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
		maxResp:    maxResp,
		validation: cfg.Validation,
	}, nil
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Run validates req, sends it and decodes the reply.
func (c *Client) Run(ctx context.Context, req *api.ExecutionRequest) (*Response, error) {
	if apiErr := api.ValidateRequest(req, c.validation); apiErr != nil {
		return nil, apiErr
	}

	lang := string(req.Language)
	start := time.Now()
	resp, outcome, err := c.do(ctx, req)
	elapsed := time.Since(start)

	observability.RunnerRequestsTotal.WithLabelValues(lang, outcome).Inc()
	observability.RunnerLatency.WithLabelValues(lang).Observe(elapsed.Seconds())

	if err != nil {
		slog.Warn("runner request failed",
			"endpoint", c.endpoint,
			"language", lang,
			"duration", elapsed,
			"error", err.Error(),
		)
		return nil, err
	}

	resp.Duration = elapsed
	debug.Log("runner", "runner request completed",
		"language", lang,
		"http_status", resp.HTTPStatus,
		"status_code", resp.StatusCode,
		"has_error", resp.Result.Error != nil,
		"duration", elapsed,
	)
	return resp, nil
}

func (c *Client) do(ctx context.Context, req *api.ExecutionRequest) (*Response, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, observability.OutcomeTransportError, fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, observability.OutcomeTransportError, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	debug.Log("runner", "runner request", "endpoint", c.endpoint, "language", req.Language, "code_bytes", len(req.Code))
	debug.Raw("runner", string(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, observability.OutcomeTransportError, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxResp))
	if err != nil {
		return nil, observability.OutcomeTransportError, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	debug.Raw("runner", string(respBody))

	ok := httpResp.StatusCode >= 200 && httpResp.StatusCode < 300
	result, statusCode, decodeErr := decode(respBody)
	if decodeErr != nil {
		if !ok {
			return nil, observability.OutcomeStatusError,
				fmt.Errorf("%w: HTTP %d: %s", ErrStatus, httpResp.StatusCode, debug.Truncate(string(respBody), 200))
		}
		return nil, observability.OutcomeEnvelopeError, fmt.Errorf("%w: %v", ErrEnvelope, decodeErr)
	}

	failed := !ok || statusCode >= 400
	if failed && result.ErrorText() == "" {
		return nil, observability.OutcomeStatusError,
			fmt.Errorf("%w: HTTP %d, envelope status %d without error text", ErrStatus, httpResp.StatusCode, statusCode)
	}

	outcome := observability.OutcomeOK
	if result.ErrorText() != "" {
		outcome = observability.OutcomeRemoteError
	}

	return &Response{
		Result:     result,
		HTTPStatus: httpResp.StatusCode,
		StatusCode: statusCode,
		RateLimit:  parseRateLimit(httpResp.Header),
	}, outcome, nil
}

func decode(data []byte) (*api.ExecutionResult, int, error) {
	env, err := api.DecodeEnvelope(data)
	if err != nil {
		return nil, 0, err
	}
	result, err := env.Result()
	if err != nil {
		return nil, env.StatusCode, err
	}
	return result, env.StatusCode, nil
}

func parseRateLimit(h http.Header) RateLimit {
	var rl RateLimit
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rl.Limit = n
			rl.Present = true
		}
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rl.Remaining = n
			rl.Present = true
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rl.Reset = n
			rl.Present = true
		}
	}
	return rl
}
