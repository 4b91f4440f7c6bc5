package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/meetwire/meetwire-go/credentials"
	"github.com/meetwire/meetwire-go/internal/logging"
)

// Endpoints are the authorization server and identity API locations one
// Session talks to. The zero value is filled from DefaultEndpoints.
type Endpoints struct {
	AuthorizeURL    string
	TokenURL        string
	RevokeURL       string
	IntrospectURL   string
	IdentityBaseURL string
}

// DefaultEndpoints returns the production Meetwire endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthorizeURL:    "https://auth.meetwire.com/oauth/authorize",
		TokenURL:        "https://auth.meetwire.com/oauth/token",
		RevokeURL:       "https://auth.meetwire.com/oauth/revoke",
		IntrospectURL:   "https://auth.meetwire.com/oauth/introspect",
		IdentityBaseURL: "https://api.meetwire.com/v1",
	}
}

// defaultAuthTimeout bounds each authorization server call. Auth calls are
// never retried here, so the timeout is the only backstop.
const defaultAuthTimeout = 30 * time.Second

// Session manages one OAuth session end-to-end. It holds at most one
// TokenSet at a time and replaces it atomically on every successful
// exchange or refresh.
//
// A Session is safe for concurrent use. Concurrent Refresh calls share a
// single in-flight request; apart from that, the last writer wins.
type Session struct {
	identity  *credentials.OAuthIdentity
	endpoints Endpoints
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	token   *TokenSet
	refresh singleflight.Group
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEndpoints overrides the authorization server endpoints. Useful for
// staging environments and tests.
func WithEndpoints(e Endpoints) SessionOption {
	return func(s *Session) {
		s.endpoints = e
	}
}

// WithHTTPClient sets the HTTP client used for authorization server calls.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenSet seeds the session with a TokenSet obtained elsewhere, for
// callers that store tokens between process runs.
func WithTokenSet(ts *TokenSet) SessionOption {
	return func(s *Session) {
		s.token = ts
	}
}

// NewSession creates a Session for the given OAuth client identity.
func NewSession(identity *credentials.OAuthIdentity, opts ...SessionOption) *Session {
	s := &Session{
		identity:  identity,
		endpoints: DefaultEndpoints(),
		client:    &http.Client{Timeout: defaultAuthTimeout},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a copy of the held TokenSet, or nil when the session has
// not authenticated yet.
func (s *Session) Token() *TokenSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	cp := *s.token
	return &cp
}

// SetToken replaces the held TokenSet wholesale.
func (s *Session) SetToken(ts *TokenSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ts
}

// Expired reports whether the held token has expired. A session without a
// token counts as expired; a TokenSet without expiry never expires.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return true
	}
	return s.token.Expired(s.now())
}

// AuthorizationURL builds the URL a user visits to authorize this client.
//
// When state is empty a random value is generated; the caller must persist
// whichever state ends up in the URL to validate the callback. loginHint
// pre-fills the login form and may be empty. Pure string construction, no
// I/O.
func (s *Session) AuthorizationURL(state, loginHint string) string {
	if state == "" {
		state = uuid.NewString()
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.identity.ClientID)
	q.Set("redirect_uri", s.identity.RedirectURI)
	q.Set("state", state)
	if scope := s.identity.ScopeString(); scope != "" {
		q.Set("scope", scope)
	}
	if loginHint != "" {
		q.Set("login_hint", loginHint)
	}

	return s.endpoints.AuthorizeURL + "?" + q.Encode()
}

// ExchangeCode exchanges an authorization code for tokens. On success the
// held TokenSet is replaced entirely and returned.
func (s *Session) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.identity.RedirectURI)

	ts, err := s.tokenCall(ctx, form)
	if err != nil {
		return nil, &ExchangeError{Err: err}
	}

	s.SetToken(ts)
	s.logger.Debug("authorization code exchanged",
		logging.Operation("auth.exchange"),
		"expires_at", ts.ExpiresAt)
	return ts, nil
}

// Refresh obtains a fresh TokenSet using override when given, else the
// held refresh token. On failure the previously held TokenSet is kept.
//
// Concurrent Refresh calls with the same override are coalesced into one
// network call; every caller receives the same result.
func (s *Session) Refresh(ctx context.Context, override string) (*TokenSet, error) {
	refreshToken := override
	if refreshToken == "" {
		s.mu.RLock()
		if s.token != nil {
			refreshToken = s.token.RefreshToken
		}
		s.mu.RUnlock()
	}
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	v, err, _ := s.refresh.Do(refreshToken, func() (any, error) {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)

		ts, err := s.tokenCall(ctx, form)
		if err != nil {
			return nil, &RefreshError{Err: err}
		}

		s.SetToken(ts)
		s.logger.Debug("token refreshed",
			logging.Operation("auth.refresh"),
			"expires_at", ts.ExpiresAt)
		return ts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenSet), nil
}

// ClientCredentials performs the session-less client credentials grant.
// The resulting TokenSet never carries a refresh token. The held TokenSet
// is replaced on success.
func (s *Session) ClientCredentials(ctx context.Context, scopes []string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	ts, err := s.tokenCall(ctx, form)
	if err != nil {
		return nil, &ExchangeError{Err: err}
	}
	ts.RefreshToken = ""

	s.SetToken(ts)
	return ts, nil
}

// Revoke invalidates a token at the authorization server. hint is the
// token_type_hint ("access_token" or "refresh_token") and may be empty.
// Local state is not cleared; the caller decides what to discard.
func (s *Session) Revoke(ctx context.Context, token, hint string) error {
	form := url.Values{}
	form.Set("token", token)
	if hint != "" {
		form.Set("token_type_hint", hint)
	}

	if _, err := s.postForm(ctx, s.endpoints.RevokeURL, form); err != nil {
		return &RevocationError{Err: err}
	}
	return nil
}

// TokenMetadata is the result of introspecting a token.
type TokenMetadata struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// Introspect queries the authorization server for a token's metadata.
// It is read-only and independent of the held TokenSet.
func (s *Session) Introspect(ctx context.Context, token string) (*TokenMetadata, error) {
	form := url.Values{}
	form.Set("token", token)

	body, err := s.postForm(ctx, s.endpoints.IntrospectURL, form)
	if err != nil {
		return nil, &IdentityError{Op: "introspection", Err: err}
	}

	meta := &TokenMetadata{}
	if err := json.Unmarshal(body, meta); err != nil {
		return nil, &IdentityError{Op: "introspection", Err: err}
	}
	return meta, nil
}

// tokenCall posts a grant to the token endpoint and converts the response.
func (s *Session) tokenCall(ctx context.Context, form url.Values) (*TokenSet, error) {
	body, err := s.postForm(ctx, s.endpoints.TokenURL, form)
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	return resp.tokenSet(s.now()), nil
}

// postForm sends one form-encoded request authenticated with the client's
// basic credentials. Exactly one attempt; retries belong to the request
// executor when a session is layered beneath it.
func (s *Session) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", s.identity.BasicAuth())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &EndpointError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// Apply implements the client.Authenticator interface: it attaches the
// bearer token to an outbound API request, refreshing first when the held
// token is expired and a refresh token exists.
//
// A failed refresh is deliberately swallowed here: the stale credential is
// attached anyway and the server's 401 becomes the authoritative signal.
func (s *Session) Apply(ctx context.Context, req *http.Request) error {
	if s.Expired() {
		if _, err := s.Refresh(ctx, ""); err != nil {
			s.logger.Debug("pre-request token refresh failed, using held token",
				logging.Operation("auth.refresh"),
				logging.Err(err))
		}
	}

	token := s.Token()
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("auth: session has no access token")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return nil
}
