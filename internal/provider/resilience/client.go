package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/parkest/parkest/internal/telemetry"
)

var (
	// ErrCircuitOpen is returned without a request while the provider's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider in logs and the registry.
	Name string

	// Timeout bounds each attempt (default: 10 seconds).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt (default: 3).
	// Negative disables retries.
	MaxRetries int

	// InitialInterval is the first backoff interval (default: 100ms).
	InitialInterval time.Duration

	// MaxInterval caps the backoff interval (default: 5 seconds).
	MaxInterval time.Duration

	// Breaker tunes the circuit breaker; zero fields take DefaultBreakerConfig values.
	Breaker BreakerConfig

	// Registry tracks the provider's health (optional).
	Registry *Registry

	// Metrics records call durations and outcomes (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for retries and breaker transitions.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the defaults for a provider called name.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         DefaultBreakerConfig(),
	}
}

// Client sends provider requests through a circuit breaker and retries
// transient failures with exponential backoff.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	retries    uint64
	initial    time.Duration
	maxBackoff time.Duration
	registry   *Registry
	metrics    *telemetry.ProviderMetrics
	logger     zerolog.Logger
}

// NewClient creates a client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		initial:    cfg.InitialInterval,
		maxBackoff: cfg.MaxInterval,
		registry:   cfg.Registry,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
	if cfg.MaxRetries > 0 {
		c.retries = uint64(cfg.MaxRetries)
	}
	c.breaker = newBreaker(cfg.Name, cfg.Breaker, c.stateChanged)

	if c.registry != nil {
		c.registry.Register(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counts of the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req. 5xx responses and network errors are retried; once retries are
// exhausted the last 5xx response is returned so the caller can map its status.
// Cancellation of the request context is returned as is and is not recorded as
// a provider failure.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initial
	bo.MaxInterval = c.maxBackoff
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			last.Body.Close()
		}
		last = resp
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		clone, err := cloneRequest(ctx, req)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed by keep or the caller
			r, err := c.httpClient.Do(clone)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case ctx.Err() != nil:
			if resp != nil {
				resp.Body.Close()
			}
			return backoff.Permanent(ctx.Err())
		case err != nil:
			if resp != nil {
				keep(resp)
			}
			c.logger.Debug().Err(err).
				Str("provider", c.name).
				Int("attempt", attempt).
				Msg("provider request failed, retrying")
			return err
		}
		keep(resp)
		return nil
	}, policy)

	if err == nil {
		c.registry.recordSuccess(c.name)
		c.metrics.Request(ctx, c.name, telemetry.OutcomeOK, time.Since(start))
		return last, nil
	}

	if errors.Is(err, context.Canceled) {
		c.metrics.Request(ctx, c.name, telemetry.OutcomeCanceled, time.Since(start))
		keep(nil)
		return nil, err
	}
	c.registry.recordFailure(c.name, err)
	if errors.Is(err, ErrCircuitOpen) {
		c.metrics.Request(ctx, c.name, telemetry.OutcomeCircuitOpen, time.Since(start))
	} else {
		c.metrics.Request(ctx, c.name, telemetry.OutcomeError, time.Since(start))
	}
	if last != nil && !errors.Is(err, ErrCircuitOpen) {
		return last, nil
	}
	keep(nil)
	return nil, err
}

func (c *Client) stateChanged(name string, from, to gobreaker.State) {
	c.logger.Warn().
		Str("provider", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state changed")
	c.registry.recordTransition(name, to)
}

// cloneRequest copies req for one attempt, rewinding the body when possible.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	clone.Body = io.NopCloser(body)
	return clone, nil
}

// ServerError is a 5xx answer from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
