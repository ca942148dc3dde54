package httpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/resilience"
)

// Config configures Client.
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second, zero means unlimited
	UserAgent    string
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: time.Second,
		RetryWaitMax: 30 * time.Second,
		UserAgent:    "apmtrace-http/1.0",
	}
}

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("external service unavailable: circuit breaker open")

// Client wraps resty with tracing, rate limiting and a circuit breaker.
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	mu      sync.RWMutex
}

// NewRetryable returns a go-retryablehttp client whose attempts are traced.
func NewRetryable(cfg Config) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Logger = nil
	rc.HTTPClient.Transport = NewTransport(rc.HTTPClient.Transport, "retryablehttp")
	return rc
}

// NewClient creates a traced resty client.
func NewClient(cfg Config) *Client {
	base := retryablehttp.NewClient().HTTPClient.Transport

	rc := resty.New()
	rc.SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryMax).
		SetRetryWaitTime(cfg.RetryWaitMin).
		SetRetryMaxWaitTime(cfg.RetryWaitMax).
		SetTransport(NewTransport(base, "resty"))
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}

	breaker := resilience.New("http-external", resilience.Settings{
		Probes:   5,
		Interval: 60 * time.Second,
		Cooldown: 30 * time.Second,
		Trip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 10 ||
				(c.Calls >= 20 && float64(c.Failures)/float64(c.Calls) > 0.7)
		},
	})

	c := &Client{Resty: rc, Breaker: breaker}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetRateLimit configures requests per second. Zero or less is unlimited.
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetHeader adds a default header.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// Request returns a resty request bound to ctx once the limiter allows it.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return c.Resty.R().SetContext(ctx), nil
}

// Do sends a request through the breaker. 5xx responses count as failures
// but are still returned.
func (c *Client) Do(ctx context.Context, method, url string) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}

	var resp *resty.Response
	err = c.Breaker.Do(ctx, func(context.Context) error {
		var execErr error
		resp, execErr = req.Execute(method, url)
		if execErr != nil {
			return execErr
		}
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("server error: %s", resp.Status())
		}
		return nil
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, ErrUnavailable
	case err != nil && resp != nil && resp.StatusCode() >= 500:
		return resp, nil
	default:
		return resp, err
	}
}
