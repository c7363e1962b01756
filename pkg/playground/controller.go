package playground

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rhuss/glimpse/pkg/api"
	"github.com/rhuss/glimpse/pkg/debug"
	"github.com/rhuss/glimpse/pkg/observability"
	"github.com/rhuss/glimpse/pkg/runner"
)

// GenericErrorMessage is shown for every failure that did not come with a
// specific message from the remote runner.
const GenericErrorMessage = "Failed to execute code. Please try again."

// Runner executes a request against the remote endpoint.
type Runner interface {
	Run(ctx context.Context, req *api.ExecutionRequest) (*runner.Response, error)
}

// State is a snapshot of a visitor's editor.
type State struct {
	Language      api.Language `json:"language"`
	Code          string       `json:"code"`
	Input         string       `json:"input"`
	Output        string       `json:"output"`
	Error         string       `json:"error"`
	ExecutionTime string       `json:"executionTime,omitempty"`
	Running       bool         `json:"running"`
	Generation    uint64       `json:"generation"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithLanguage sets the initial language. Unsupported values are ignored.
func WithLanguage(lang api.Language) Option {
	return func(c *Controller) {
		if api.Supported(lang) {
			c.state.Language = lang
			c.state.Code = api.Sample(lang)
		}
	}
}

// WithValidation overrides the limits checked before a run is sent.
func WithValidation(cfg api.ValidationConfig) Option {
	return func(c *Controller) { c.validation = cfg }
}

// Controller is the state container for one playground page.
// All methods are safe for concurrent use.
type Controller struct {
	runner     Runner
	validation api.ValidationConfig

	mu     sync.Mutex
	state  State
	latest uint64
	subs   map[chan State]struct{}
}

// New creates a controller showing the default language and its sample.
func New(r Runner, opts ...Option) *Controller {
	c := &Controller{
		runner:     r,
		validation: api.DefaultValidationConfig(),
		state: State{
			Language: api.DefaultLanguage,
			Code:     api.Sample(api.DefaultLanguage),
		},
		subs: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectLanguage makes lang active and replaces the code buffer with its
// canned sample.
func (c *Controller) SelectLanguage(lang api.Language) error {
	info, ok := api.Lookup(lang)
	if !ok {
		return api.NewUnsupportedLanguageError()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Language = info.Value
	c.state.Code = info.Sample
	c.notifyLocked()
	return nil
}

// LoadSample resets the code buffer to the active language's sample.
func (c *Controller) LoadSample() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Code = api.Sample(c.state.Language)
	c.notifyLocked()
}

// SetCode replaces the code buffer.
func (c *Controller) SetCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Code = code
	c.notifyLocked()
}

// SetInput replaces the stdin buffer.
func (c *Controller) SetInput(input string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Input = input
	c.notifyLocked()
}

// Submit records the buffers, sends one request to the runner and applies
// the result unless a newer submission started meanwhile. The returned
// snapshot is taken after the result (or its rejection) was handled.
//
// Previous output and error are cleared before the request is sent. On any
// failure without a remote message the error pane shows
// GenericErrorMessage and the output pane stays empty.
func (c *Controller) Submit(ctx context.Context, code, input string, lang api.Language) State {
	req := &api.ExecutionRequest{Language: lang, Code: code, Input: input}

	c.mu.Lock()
	c.latest++
	gen := c.latest
	c.state.Code = code
	c.state.Input = input
	c.state.Output = ""
	c.state.Error = ""
	c.state.ExecutionTime = ""
	c.state.Generation = gen

	if apiErr := api.ValidateRequest(req, c.validation); apiErr != nil {
		c.state.Running = false
		c.state.Error = apiErr.Message
		c.notifyLocked()
		snapshot := c.state
		c.mu.Unlock()
		debug.Log("playground", "submission rejected", "generation", gen, "param", apiErr.Param)
		return snapshot
	}

	c.state.Language = lang
	c.state.Running = true
	c.notifyLocked()
	c.mu.Unlock()

	debug.Log("playground", "submission started", "generation", gen, "language", lang)
	resp, err := c.runner.Run(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.latest {
		observability.StaleResultsTotal.Inc()
		debug.Log("playground", "discarding stale result", "generation", gen, "latest", c.latest)
		return c.state
	}

	c.state.Running = false
	if err != nil {
		slog.Debug("submission failed", "generation", gen, "error", err.Error())
	}
	c.state.Output, c.state.Error, c.state.ExecutionTime = Outcome(resp, err)
	c.notifyLocked()
	return c.state
}

// Run submits the current buffers with the active language.
func (c *Controller) Run(ctx context.Context) State {
	s := c.State()
	return c.Submit(ctx, s.Code, s.Input, s.Language)
}

// Subscribe returns a channel that receives a snapshot after every state
// change, and a function that ends the subscription. A slow reader only
// ever sees the newest snapshot.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
		})
	}
}

// notifyLocked must be called with c.mu held.
func (c *Controller) notifyLocked() {
	for ch := range c.subs {
		select {
		case ch <- c.state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c.state:
			default:
			}
		}
	}
}

// Outcome maps a runner reply to the output, error text and execution time
// shown to the visitor. A local validation error keeps its message; every
// other failure, and a reply without a result, becomes GenericErrorMessage
// with empty output.
func Outcome(resp *runner.Response, err error) (output, errText, execTime string) {
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return "", apiErr.Message, ""
		}
		return "", GenericErrorMessage, ""
	}
	if resp == nil || resp.Result == nil {
		return "", GenericErrorMessage, ""
	}
	return resp.Result.OutputText(), resp.Result.ErrorText(), resp.Result.Duration()
}
