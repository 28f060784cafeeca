// Package fetch performs upstream calls with a bounded, fixed-delay retry policy.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Project-Sylos/IndexTree/internal/logging"
	"github.com/Project-Sylos/IndexTree/internal/metrics"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/internal/upstream"
	"github.com/Project-Sylos/IndexTree/internal/utils"
)

const (
	defaultMaxAttempts = 3
	maxBodyBytes       = 64 << 20
)

// HTTPClient is the transport used by Client; *http.Client satisfies it
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher is the single-call contract the walker and series fetcher depend on
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
}

// Client calls the remote statistics API
type Client struct {
	baseURL         *url.URL
	httpClient      HTTPClient
	limiter         *rate.Limiter
	maxAttempts     int
	backoff         time.Duration
	requestTimeout  time.Duration
	requestIDHeader string
	log             *logrus.Entry
	sleep           func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the log entry
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = logging.Component(log, "fetch") }
}

// New creates a client from the upstream configuration
func New(cfg types.UpstreamConfig, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid upstream base url: %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:         u,
		maxAttempts:     cfg.MaxAttempts,
		backoff:         cfg.BackoffDelay.Std(),
		requestTimeout:  cfg.RequestTimeout.Std(),
		requestIDHeader: cfg.RequestIDHeader,
		limiter:         newLimiter(cfg.RequestsPerSec),
		log:             logging.Nop(),
		sleep:           sleepContext,
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.backoff < 0 {
		c.backoff = 0
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Fetch performs one logical GET of endpoint, retrying failed attempts after a fixed delay.
// A body that is not JSON fails with upstream.ErrMalformed and is not retried.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	m := metrics.Get()
	start := time.Now()
	defer func() {
		m.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var last *RemoteError
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoff); err != nil {
				return nil, errors.Wrap(err, "fetch "+endpoint)
			}
		}

		body, rerr, err := c.attempt(ctx, endpoint, params)
		if err != nil {
			// cancellation of the caller's context is never retried
			m.FetchAttempts.WithLabelValues(endpoint, "canceled").Inc()
			return nil, err
		}
		if rerr == nil {
			if !json.Valid(body) {
				m.FetchAttempts.WithLabelValues(endpoint, "malformed").Inc()
				return nil, errors.Wrapf(upstream.ErrMalformed, "%s: response is not JSON", endpoint)
			}
			m.FetchAttempts.WithLabelValues(endpoint, "ok").Inc()
			return json.RawMessage(body), nil
		}

		m.FetchAttempts.WithLabelValues(endpoint, rerr.Kind.String()).Inc()
		rerr.Attempts = attempt
		rerr.Retryable = attempt < c.maxAttempts
		last = rerr

		c.log.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"attempt":  attempt,
			"status":   rerr.StatusCode,
		}).WithError(rerr).Warn("upstream attempt failed")
	}

	return nil, &RemoteError{
		Kind:       KindExhausted,
		Endpoint:   endpoint,
		StatusCode: last.StatusCode,
		Message:    "attempts exceeded",
		Attempts:   c.maxAttempts,
		Last:       last,
	}
}

// attempt returns the body on success, a RemoteError for a retryable failure,
// or a plain error when the caller's context is done.
func (c *Client) attempt(ctx context.Context, endpoint string, params url.Values) ([]byte, *RemoteError, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.Wrap(ctx.Err(), "fetch "+endpoint)
		}
		return nil, transportError(endpoint, err), nil
	}

	reqCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpointURL(endpoint, params), nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.requestIDHeader != "" {
		req.Header.Set(c.requestIDHeader, uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.Wrap(ctx.Err(), "fetch "+endpoint)
		}
		return nil, transportError(endpoint, err), nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, errors.Wrap(ctx.Err(), "fetch "+endpoint)
		}
		return nil, transportError(endpoint, err), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(endpoint, resp.StatusCode, body), nil
	}
	return body, nil, nil
}

func (c *Client) endpointURL(endpoint string, params url.Values) string {
	u := *c.baseURL
	u.Path = utils.JoinPath(u.Path, endpoint)
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
