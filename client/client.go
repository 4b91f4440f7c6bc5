package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meetwire/meetwire-go/internal/logging"
)

// DefaultBaseURL is the production Meetwire API.
const DefaultBaseURL = "https://api.meetwire.com/v1"

// defaultTimeout bounds each individual attempt, not the whole retry loop.
const defaultTimeout = 30 * time.Second

// tracerName identifies spans emitted by this package.
const tracerName = "github.com/meetwire/meetwire-go/client"

// Authenticator attaches credentials to an outbound request. It may block,
// for example to refresh an expired token, before setting headers.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// MetricsRecorder receives request and retry observations. The
// instrumentation provider's Metrics satisfies it.
type MetricsRecorder interface {
	RecordAPIRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
	RecordAPIRetry(ctx context.Context, reason string)
}

// RetryPolicy controls how transient failures are retried. It applies
// uniformly to every request issued by one Client.
type RetryPolicy struct {
	// MaxAttempts is the number of retries after the first attempt.
	// Zero disables retrying.
	MaxAttempts int

	// BaseDelay is the first backoff interval; attempt n waits
	// BaseDelay * 2^n unless the server specifies Retry-After.
	BaseDelay time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

// CallOptions is a per-call overlay. It can add headers and query
// parameters but never changes retry behavior.
type CallOptions struct {
	// Header entries are set on the request, overriding client defaults.
	Header http.Header

	// Query parameters appended to the request URL.
	Query url.Values

	// Timezone, when set, is sent as the X-Meetwire-Timezone header and
	// controls how the API renders meeting times.
	Timezone string
}

// Client executes API requests with authentication and retries.
// It is safe for concurrent use; concurrently issued requests retry
// independently with no cross-request ordering.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authenticator
	policy     RetryPolicy
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithAuthenticator sets the credential source for outbound requests.
// Both *auth.Session and *credentials.APIKey satisfy Authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(cl *Client) {
		cl.auth = a
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cl *Client) {
		cl.policy = p
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithMetrics sets the recorder that observes requests and retries.
func WithMetrics(m MetricsRecorder) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// New creates a Client for the given base URL. An empty baseURL selects
// the production API.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		policy:     DefaultRetryPolicy,
		timeout:    defaultTimeout,
		userAgent:  "meetwire-go",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts *CallOptions) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts *CallOptions) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts *CallOptions) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any, opts *CallOptions) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *CallOptions) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts)
}

// Do executes one logical request through the retry policy and returns the
// raw response body on success. Terminal failures are *APIError or
// *RequestError.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts *CallOptions) (json.RawMessage, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	out, err := c.doWithRetry(ctx, method, path, body, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body any, opts *CallOptions) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, &RequestError{Err: err}
		}
	}

	target, err := c.buildURL(path, opts)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	// lastAPIErr remembers the most recent retryable server answer so it
	// can be surfaced when the policy is exhausted through a Retry-After
	// pacing error.
	var lastAPIErr *APIError

	op := func() (json.RawMessage, error) {
		out, opErr := c.attempt(ctx, method, path, target, payload, opts)
		var apiErr *APIError
		if errors.As(opErr, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError {
			lastAPIErr = apiErr
		}
		return out, opErr
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.policy.BaseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(c.policy.MaxAttempts)+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if c.metrics != nil {
				c.metrics.RecordAPIRetry(ctx, retryReason(err))
			}
			c.logger.Debug("retrying request",
				"method", method,
				"path", path,
				"delay", delay,
				logging.Err(err))
		}),
	)
	if err == nil {
		return out, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return nil, apiErr
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return nil, reqErr
	}
	if lastAPIErr != nil {
		return nil, lastAPIErr
	}
	return nil, &RequestError{Err: err}
}

// retryReason maps a retryable attempt error to a stable metric label.
func retryReason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return "rate_limited"
		}
		return "server_error"
	}
	return "transport"
}

// attempt performs a single dispatch and classifies the outcome for the
// retry loop.
func (c *Client) attempt(ctx context.Context, method, path, target string, payload []byte, opts *CallOptions) (json.RawMessage, error) {
	actx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(actx, method, target, bodyReader)
	if err != nil {
		// The request cannot be built; retrying will not change that.
		return nil, backoff.Permanent(&RequestError{Err: err})
	}

	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts != nil {
		for k, vs := range opts.Header {
			req.Header[k] = vs
		}
		if opts.Timezone != "" {
			req.Header.Set("X-Meetwire-Timezone", opts.Timezone)
		}
	}

	if c.auth != nil {
		if err := c.auth.Apply(actx, req); err != nil {
			return nil, backoff.Permanent(&RequestError{Err: err})
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response at all: transient from this layer's point of view.
		return nil, &RequestError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		c.metrics.RecordAPIRequest(ctx, method, path, resp.StatusCode, time.Since(start))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr := decodeAPIError(resp.StatusCode, respBody)
		if delay, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			// Server-specified pacing takes precedence over our backoff.
			return nil, &retryAfterAPIError{
				RetryAfterError: backoff.RetryAfterError{Duration: delay},
				apiErr:          apiErr,
			}
		}
		return nil, apiErr

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client mistakes fail fast.
		return nil, backoff.Permanent(decodeAPIError(resp.StatusCode, respBody))

	default:
		return nil, decodeAPIError(resp.StatusCode, respBody)
	}
}

// retryAfterAPIError carries the server's APIError through the backoff
// library's Retry-After pacing, so exhaustion still surfaces the last 429.
// Both the pacing error and the APIError are reachable via errors.As.
type retryAfterAPIError struct {
	backoff.RetryAfterError
	apiErr *APIError
}

func (e *retryAfterAPIError) Unwrap() []error {
	return []error{&e.RetryAfterError, e.apiErr}
}

func (c *Client) buildURL(path string, opts *CallOptions) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	if opts != nil && len(opts.Query) > 0 {
		q := u.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// parseRetryAfter interprets a Retry-After header as either an integer
// seconds count or an HTTP date.
func parseRetryAfter(header string, now time.Time) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(header); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
