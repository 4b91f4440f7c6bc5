package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer answers with a fixed sequence of statuses, then keeps
// repeating the last one. It records the number of requests received.
type scriptedServer struct {
	statuses []int
	bodies   []string
	headers  []http.Header
	calls    atomic.Int32
}

func (s *scriptedServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := int(s.calls.Add(1)) - 1
		if i >= len(s.statuses) {
			i = len(s.statuses) - 1
		}
		if s.headers != nil && s.headers[i] != nil {
			for k, vs := range s.headers[i] {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(s.statuses[i])
		if s.bodies != nil && s.bodies[i] != "" {
			_, _ = w.Write([]byte(s.bodies[i]))
		}
	}
}

func newTestClient(t *testing.T, s *scriptedServer, policy RetryPolicy) *Client {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, WithRetryPolicy(policy))
}

func TestGetSuccess(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusOK},
		bodies:   []string{`{"id":"m_1","topic":"standup"}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	out, err := c.Get(context.Background(), "/meetings/m_1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m_1","topic":"standup"}`, string(out))
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestRateLimitedThenSuccess(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusOK},
		bodies:   []string{`{"error":"rate limited"}`, `{"error":"rate limited"}`, `{"ok":true}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	start := time.Now()
	out, err := c.Get(context.Background(), "/meetings", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))

	// Exactly two retries happened, separated by base*1 and base*2.
	assert.Equal(t, int32(3), s.calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestRateLimitExhaustionSurfacesLast429(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusTooManyRequests},
		bodies:   []string{`{"code":"rate_limited","error":"too many requests"}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	_, err := c.Get(context.Background(), "/meetings", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate_limited", apiErr.Code)
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestServerErrorRetriedUntilExhaustion(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusInternalServerError},
		bodies:   []string{`{"error":"boom"}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	_, err := c.Get(context.Background(), "/meetings", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	// maxAttempts+1 attempts in total.
	assert.Equal(t, int32(3), s.calls.Load())
}

func TestServerErrorThenSuccess(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusBadGateway, http.StatusOK},
		bodies:   []string{"", `{"ok":true}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	out, err := c.Get(context.Background(), "/meetings", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, int32(2), s.calls.Load())
}

func TestClientErrorNeverRetried(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusNotFound},
		bodies:   []string{`{"code":"not_found","message":"no such meeting"}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	_, err := c.Get(context.Background(), "/meetings/nope", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "no such meeting", apiErr.Message)
	// Exactly one attempt regardless of the retry budget.
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestRetryAfterSecondsAndDateAreEquivalent(t *testing.T) {
	run := func(t *testing.T, retryAfter string) time.Duration {
		t.Helper()
		s := &scriptedServer{
			statuses: []int{http.StatusTooManyRequests, http.StatusOK},
			bodies:   []string{"", `{}`},
			headers: []http.Header{
				{"Retry-After": []string{retryAfter}},
				nil,
			},
		}
		c := newTestClient(t, s, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})

		start := time.Now()
		_, err := c.Get(context.Background(), "/meetings", nil)
		require.NoError(t, err)
		require.Equal(t, int32(2), s.calls.Load())
		return time.Since(start)
	}

	secondsDelay := run(t, "1")
	dateDelay := run(t, time.Now().Add(1*time.Second).UTC().Format(http.TimeFormat))

	// Both forms wait about one second before the retry.
	assert.GreaterOrEqual(t, secondsDelay, 900*time.Millisecond)
	assert.GreaterOrEqual(t, dateDelay, 500*time.Millisecond)
	assert.Less(t, secondsDelay, 5*time.Second)
	assert.Less(t, dateDelay, 5*time.Second)
}

func TestTransportErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	// Point the client at a closed listener: connection refused on every
	// attempt.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()
	defer srv.Close()

	c := New(deadURL, WithRetryPolicy(RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}))
	_, err := c.Get(context.Background(), "/meetings", nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Zero(t, calls.Load())
}

func TestRequestConstructionFailureNotRetried(t *testing.T) {
	c := New("http://example.com", WithRetryPolicy(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}))

	// A control character in the path makes the request unbuildable.
	_, err := c.Do(context.Background(), "bad method", "/meetings", nil, nil)

	var reqErr *RequestError
	assert.ErrorAs(t, err, &reqErr)
}

func TestErrorBodyDefaults(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "error field preferred over message",
			body:        `{"code":"bad_request","error":"from error","message":"from message"}`,
			wantCode:    "bad_request",
			wantMessage: "from error",
		},
		{
			name:        "message used when error absent",
			body:        `{"code":"bad_request","message":"from message"}`,
			wantCode:    "bad_request",
			wantMessage: "from message",
		},
		{
			name:        "defaults for empty body",
			body:        "",
			wantCode:    "unknown_error",
			wantMessage: "An error occurred",
		},
		{
			name:        "defaults for unparsable body",
			body:        "<html>gateway error</html>",
			wantCode:    "unknown_error",
			wantMessage: "An error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedServer{
				statuses: []int{http.StatusBadRequest},
				bodies:   []string{tt.body},
			}
			c := newTestClient(t, s, RetryPolicy{MaxAttempts: 0, BaseDelay: time.Millisecond})

			_, err := c.Get(context.Background(), "/meetings", nil)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
		})
	}
}

func TestRequestIDCapturedFromErrorBody(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusConflict},
		bodies:   []string{`{"code":"conflict","error":"already exists","request_id":"req_42"}`},
	}
	c := newTestClient(t, s, RetryPolicy{MaxAttempts: 0, BaseDelay: time.Millisecond})

	_, err := c.Post(context.Background(), "/meetings", map[string]string{"topic": "x"}, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "req_42", apiErr.RequestID)
}

func TestCallOptionsOverlay(t *testing.T) {
	var gotHeader http.Header
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Get(context.Background(), "/meetings", &CallOptions{
		Header:   http.Header{"X-Request-Tag": []string{"test"}},
		Query:    map[string][]string{"page_size": {"10"}},
		Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)

	assert.Equal(t, "test", gotHeader.Get("X-Request-Tag"))
	assert.Equal(t, "Europe/Berlin", gotHeader.Get("X-Meetwire-Timezone"))
	assert.Equal(t, "page_size=10", gotQuery)
}

type headerAuth struct {
	calls atomic.Int32
}

func (a *headerAuth) Apply(_ context.Context, req *http.Request) error {
	a.calls.Add(1)
	req.Header.Set("Authorization", "Bearer test-token")
	return nil
}

func TestAuthenticatorAppliedPerAttempt(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusInternalServerError, http.StatusOK},
		bodies:   []string{"", `{}`},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		s.handler()(w, r)
	}))
	defer srv.Close()

	auth := &headerAuth{}
	c := New(srv.URL,
		WithAuthenticator(auth),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}))

	_, err := c.Get(context.Background(), "/meetings", nil)
	require.NoError(t, err)
	// The hook runs again for the retry, picking up refreshed credentials.
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestPostMarshalsBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"m_1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	out, err := c.Post(context.Background(), "/meetings", map[string]string{"topic": "standup"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m_1"}`, string(out))
	assert.Equal(t, "standup", got["topic"])
}

type recordingMetrics struct {
	requests atomic.Int32
	retries  []string
}

func (m *recordingMetrics) RecordAPIRequest(_ context.Context, _, _ string, _ int, _ time.Duration) {
	m.requests.Add(1)
}

func (m *recordingMetrics) RecordAPIRetry(_ context.Context, reason string) {
	m.retries = append(m.retries, reason)
}

func TestMetricsRecorderObservesAttempts(t *testing.T) {
	s := &scriptedServer{
		statuses: []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusOK},
		bodies:   []string{"", "", `{}`},
	}
	srv := httptest.NewServer(s.handler())
	defer srv.Close()

	metrics := &recordingMetrics{}
	c := New(srv.URL,
		WithMetrics(metrics),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := c.Get(context.Background(), "/meetings", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), metrics.requests.Load())
	assert.Equal(t, []string{"server_error", "rate_limited"}, metrics.retries)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	d, ok := parseRetryAfter("2", now)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	d, ok = parseRetryAfter(now.Add(2*time.Second).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	// Dates in the past clamp to zero instead of going negative.
	d, ok = parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Zero(t, d)

	_, ok = parseRetryAfter("", now)
	assert.False(t, ok)

	_, ok = parseRetryAfter("soonish", now)
	assert.False(t, ok)
}
