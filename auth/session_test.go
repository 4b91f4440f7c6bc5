package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetwire/meetwire-go/credentials"
)

func testIdentity() *credentials.OAuthIdentity {
	return &credentials.OAuthIdentity{
		ClientID:     "client_1",
		ClientSecret: "secret_1",
		RedirectURI:  "https://partner.example.com/callback",
		Scopes:       []string{"meeting:read", "meeting:write"},
	}
}

// newTestSession builds a session pointed at a stub authorization server.
func newTestSession(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewSession(testIdentity(), WithEndpoints(Endpoints{
		AuthorizeURL:    srv.URL + "/oauth/authorize",
		TokenURL:        srv.URL + "/oauth/token",
		RevokeURL:       srv.URL + "/oauth/revoke",
		IntrospectURL:   srv.URL + "/oauth/introspect",
		IdentityBaseURL: srv.URL + "/v1",
	}))
}

func writeTokenResponse(w http.ResponseWriter, accessToken, refreshToken string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  accessToken,
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": refreshToken,
		"scope":         "meeting:read meeting:write",
	})
}

func TestAuthorizationURL(t *testing.T) {
	s := NewSession(testIdentity())

	raw := s.AuthorizationURL("state_123", "alice@example.com")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "auth.meetwire.com", u.Host)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client_1", q.Get("client_id"))
	assert.Equal(t, "https://partner.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state_123", q.Get("state"))
	assert.Equal(t, "meeting:read meeting:write", q.Get("scope"))
	assert.Equal(t, "alice@example.com", q.Get("login_hint"))
}

func TestAuthorizationURLGeneratesState(t *testing.T) {
	s := NewSession(testIdentity())

	u1, err := url.Parse(s.AuthorizationURL("", ""))
	require.NoError(t, err)
	u2, err := url.Parse(s.AuthorizationURL("", ""))
	require.NoError(t, err)

	assert.NotEmpty(t, u1.Query().Get("state"))
	assert.NotEqual(t, u1.Query().Get("state"), u2.Query().Get("state"))
	assert.Empty(t, u1.Query().Get("login_hint"))
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	var gotAuth string
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotAuth = r.Header.Get("Authorization")
		writeTokenResponse(w, "at_1", "rt_1")
	})

	ts, err := s.ExchangeCode(context.Background(), "code_1")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "code_1", gotForm.Get("code"))
	assert.Equal(t, "https://partner.example.com/callback", gotForm.Get("redirect_uri"))
	assert.Equal(t, testIdentity().BasicAuth(), gotAuth)

	assert.Equal(t, "at_1", ts.AccessToken)
	assert.Equal(t, "rt_1", ts.RefreshToken)
	assert.Equal(t, []string{"meeting:read", "meeting:write"}, ts.Scopes)
	assert.False(t, ts.ExpiresAt.IsZero())

	held := s.Token()
	require.NotNil(t, held)
	assert.Equal(t, "at_1", held.AccessToken)
}

func TestExchangeCodeFailure(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})

	_, err := s.ExchangeCode(context.Background(), "bad_code")

	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	var endpointErr *EndpointError
	require.ErrorAs(t, err, &endpointErr)
	assert.Equal(t, http.StatusBadRequest, endpointErr.StatusCode)
	assert.Nil(t, s.Token())
}

func TestRefreshWithoutTokenMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeTokenResponse(w, "at", "rt")
	})

	_, err := s.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, calls.Load())
}

func TestRefreshReplacesTokenWholesale(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt_old", r.PostForm.Get("refresh_token"))
		writeTokenResponse(w, "at_new", "rt_new")
	})
	s.SetToken(&TokenSet{AccessToken: "at_old", RefreshToken: "rt_old", IDToken: "id_old"})

	ts, err := s.Refresh(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "at_new", ts.AccessToken)

	held := s.Token()
	assert.Equal(t, "at_new", held.AccessToken)
	assert.Equal(t, "rt_new", held.RefreshToken)
	// Replacement is wholesale: the old id token does not survive.
	assert.Empty(t, held.IDToken)
}

func TestRefreshFailureKeepsHeldToken(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	})
	s.SetToken(&TokenSet{AccessToken: "at_old", RefreshToken: "rt_old"})

	_, err := s.Refresh(context.Background(), "")

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)

	held := s.Token()
	require.NotNil(t, held)
	assert.Equal(t, "at_old", held.AccessToken)
	assert.Equal(t, "rt_old", held.RefreshToken)
}

func TestRefreshUsesOverride(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "rt_override", r.PostForm.Get("refresh_token"))
		writeTokenResponse(w, "at_new", "rt_new")
	})

	_, err := s.Refresh(context.Background(), "rt_override")
	require.NoError(t, err)
}

func TestConcurrentRefreshesShareOneCall(t *testing.T) {
	var calls atomic.Int32
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		writeTokenResponse(w, "at_new", "rt_new")
	})
	s.SetToken(&TokenSet{AccessToken: "at_old", RefreshToken: "rt_old"})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts, err := s.Refresh(context.Background(), "")
			assert.NoError(t, err)
			assert.Equal(t, "at_new", ts.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestClientCredentialsHasNoRefreshToken(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "partner:read", r.PostForm.Get("scope"))
		writeTokenResponse(w, "at_cc", "should_be_dropped")
	})

	ts, err := s.ClientCredentials(context.Background(), []string{"partner:read"})
	require.NoError(t, err)
	assert.Equal(t, "at_cc", ts.AccessToken)
	assert.Empty(t, ts.RefreshToken)
}

func TestRevoke(t *testing.T) {
	var gotForm url.Values
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	})
	s.SetToken(&TokenSet{AccessToken: "at_1"})

	require.NoError(t, s.Revoke(context.Background(), "at_1", "access_token"))
	assert.Equal(t, "at_1", gotForm.Get("token"))
	assert.Equal(t, "access_token", gotForm.Get("token_type_hint"))

	// Local state is untouched.
	assert.NotNil(t, s.Token())
}

func TestRevokeFailure(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})

	err := s.Revoke(context.Background(), "at_1", "")
	var revErr *RevocationError
	assert.ErrorAs(t, err, &revErr)
}

func TestIntrospect(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "at_other", r.PostForm.Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"scope":"meeting:read","client_id":"client_1","user_id":"u_1"}`))
	})

	meta, err := s.Introspect(context.Background(), "at_other")
	require.NoError(t, err)
	assert.True(t, meta.Active)
	assert.Equal(t, "meeting:read", meta.Scope)
	assert.Equal(t, "u_1", meta.UserID)
}

func TestExpired(t *testing.T) {
	s := NewSession(testIdentity())

	// No token at all counts as expired.
	assert.True(t, s.Expired())

	// A token without expiry never expires.
	s.SetToken(&TokenSet{AccessToken: "at"})
	assert.False(t, s.Expired())

	s.SetToken(&TokenSet{AccessToken: "at", ExpiresAt: time.Now().Add(-time.Minute)})
	assert.True(t, s.Expired())

	s.SetToken(&TokenSet{AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)})
	assert.False(t, s.Expired())
}

func TestApplyAttachesBearerToken(t *testing.T) {
	s := NewSession(testIdentity())
	s.SetToken(&TokenSet{AccessToken: "at_1"})

	req, err := http.NewRequest(http.MethodGet, "https://api.meetwire.com/v1/meetings", nil)
	require.NoError(t, err)
	require.NoError(t, s.Apply(context.Background(), req))
	assert.Equal(t, "Bearer at_1", req.Header.Get("Authorization"))
}

func TestApplySwallowsRefreshFailure(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	s.SetToken(&TokenSet{
		AccessToken:  "at_stale",
		RefreshToken: "rt_1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	req, err := http.NewRequest(http.MethodGet, "https://api.meetwire.com/v1/meetings", nil)
	require.NoError(t, err)

	// Refresh fails, but the stale credential is still attached; the
	// server's 401 is the authoritative signal.
	require.NoError(t, s.Apply(context.Background(), req))
	assert.Equal(t, "Bearer at_stale", req.Header.Get("Authorization"))
}

func TestIdentityOperations(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/identity/passwordless/start"):
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "alice@example.com", body["email"])
			_, _ = w.Write([]byte(`{"session_id":"pw_1","expires_in":300}`))
		case strings.HasSuffix(r.URL.Path, "/identity/passwordless/verify"):
			writeTokenResponse(w, "at_pw", "rt_pw")
		case strings.HasSuffix(r.URL.Path, "/identity/consent"):
			_, _ = w.Write([]byte(`{"granted":true,"scopes":["meeting:read"]}`))
		case strings.HasSuffix(r.URL.Path, "/identity/userinfo"):
			_, _ = w.Write([]byte(`{"id":"u_1","email":"alice@example.com","name":"Alice"}`))
		case strings.HasSuffix(r.URL.Path, "/identity/scopes"):
			_, _ = w.Write([]byte(`{"scopes":["meeting:read","meeting:write"]}`))
		case strings.HasSuffix(r.URL.Path, "/partner/info"):
			_, _ = w.Write([]byte(`{"app_id":"app_1","name":"Test App","plan":"pro"}`))
		default:
			http.NotFound(w, r)
		}
	})
	s.SetToken(&TokenSet{AccessToken: "at_1"})

	ctx := context.Background()

	pw, err := s.StartPasswordlessAuth(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pw_1", pw.SessionID)

	ts, err := s.VerifyPasswordlessAuth(ctx, "pw_1", "123456")
	require.NoError(t, err)
	assert.Equal(t, "at_pw", ts.AccessToken)
	assert.Equal(t, "at_pw", s.Token().AccessToken)

	consent, err := s.CheckConsent(ctx)
	require.NoError(t, err)
	assert.True(t, consent.Granted)

	info, err := s.UserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u_1", info.ID)

	scopes, err := s.ListScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"meeting:read", "meeting:write"}, scopes)

	partner, err := s.PartnerInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app_1", partner.AppID)
}

func TestIdentityOperationFailure(t *testing.T) {
	s := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	})
	s.SetToken(&TokenSet{AccessToken: "at_1"})

	_, err := s.UserInfo(context.Background())
	var identityErr *IdentityError
	require.ErrorAs(t, err, &identityErr)
	assert.Equal(t, "user info", identityErr.Op)
}
