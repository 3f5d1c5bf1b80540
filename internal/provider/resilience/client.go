package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when every attempt failed without a response.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider. Used for the breaker, metrics and registry.
	Name string

	// Timeout bounds a single attempt. Default: 10 seconds
	Timeout time.Duration

	// MaxRetries after the first attempt. Default: 2
	MaxRetries uint64

	// InitialInterval of the exponential backoff. Default: 200ms
	InitialInterval time.Duration

	// MaxInterval of the exponential backoff. Default: 2 seconds
	MaxInterval time.Duration

	// CircuitBreaker settings. Nil uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives success/failure records. Optional.
	Registry *Registry

	// Metrics records per-call duration. Optional.
	Metrics *ProviderMetrics

	Logger zerolog.Logger
}

// DefaultClientConfig returns defaults suitable for interactive lookups.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cb,
		Logger:          zerolog.Nop(),
	}
}

// Client is an HTTP client with retries and a circuit breaker.
// 5xx responses and network errors are retried; 4xx responses are returned as is.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	config     ClientConfig
}

// NewClient creates a resilient client and registers it when a registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.OnStateChange == nil {
		cbConfig.OnStateChange = LogStateChange(cfg.Logger)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:     cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name this client was built for.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes req. After retries are exhausted on a 5xx the last response is
// returned without error so callers can surface the upstream status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	resp, err := c.do(ctx, req)

	c.record(req, resp, err, time.Since(start))
	return resp, err
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var last *http.Response
	keep := func(r *http.Response) {
		if last != nil && last != r {
			drain(last)
		}
		last = r
	}

	attempt := 0
	operation := func() error {
		attempt++
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				keep(resp)
			}
			c.config.Logger.Debug().
				Err(err).
				Str("provider", c.config.Name).
				Int("attempt", attempt).
				Msg("provider attempt failed")
			return err
		}

		keep(resp)
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		if last != nil {
			return last, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			return nil, ErrCircuitOpen
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Join(ErrMaxRetriesExceeded, err)
	}

	return last, nil
}

func (c *Client) record(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	failure := err
	if failure == nil && resp != nil && resp.StatusCode >= http.StatusInternalServerError {
		failure = &ServerError{StatusCode: resp.StatusCode}
	}

	if c.config.Registry != nil {
		if failure != nil {
			c.config.Registry.RecordFailure(c.config.Name, failure)
		} else {
			c.config.Registry.RecordSuccess(c.config.Name)
		}
	}
	if c.config.Metrics != nil {
		c.config.Metrics.RecordRequest(req.Context(), c.config.Name, req.URL.Path, elapsed, failure)
	}
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, r.Body)
	_ = r.Body.Close()
}

// ServerError is a 5xx answer from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current breaker state.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the current breaker counts.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
