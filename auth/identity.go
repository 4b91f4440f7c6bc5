package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// PasswordlessSession identifies an in-progress passwordless login.
type PasswordlessSession struct {
	SessionID string `json:"session_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// StartPasswordlessAuth begins a passwordless login for the given email.
// The platform sends the user a one-time code; complete the flow with
// VerifyPasswordlessAuth.
func (s *Session) StartPasswordlessAuth(ctx context.Context, email string) (*PasswordlessSession, error) {
	var out PasswordlessSession
	err := s.identityCall(ctx, http.MethodPost, "/identity/passwordless/start",
		map[string]string{"email": email}, clientAuth, &out)
	if err != nil {
		return nil, &IdentityError{Op: "passwordless start", Err: err}
	}
	return &out, nil
}

// VerifyPasswordlessAuth completes a passwordless login with the one-time
// code the user received. On success the held TokenSet is replaced, like a
// code exchange.
func (s *Session) VerifyPasswordlessAuth(ctx context.Context, sessionID, code string) (*TokenSet, error) {
	var resp tokenResponse
	err := s.identityCall(ctx, http.MethodPost, "/identity/passwordless/verify",
		map[string]string{"session_id": sessionID, "code": code}, clientAuth, &resp)
	if err != nil {
		return nil, &IdentityError{Op: "passwordless verify", Err: err}
	}
	if resp.AccessToken == "" {
		return nil, &IdentityError{Op: "passwordless verify", Err: fmt.Errorf("response has no access_token")}
	}

	ts := resp.tokenSet(s.now())
	s.SetToken(ts)
	return ts, nil
}

// Consent describes which scopes the user has granted this client.
type Consent struct {
	Granted bool     `json:"granted"`
	Scopes  []string `json:"scopes,omitempty"`
}

// CheckConsent reports the consent state of the session's user.
func (s *Session) CheckConsent(ctx context.Context) (*Consent, error) {
	var out Consent
	if err := s.identityCall(ctx, http.MethodGet, "/identity/consent", nil, bearerAuth, &out); err != nil {
		return nil, &IdentityError{Op: "consent check", Err: err}
	}
	return &out, nil
}

// UserInfo is the platform profile of the session's user.
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// UserInfo fetches the profile of the user the session acts for.
func (s *Session) UserInfo(ctx context.Context) (*UserInfo, error) {
	var out UserInfo
	if err := s.identityCall(ctx, http.MethodGet, "/identity/userinfo", nil, bearerAuth, &out); err != nil {
		return nil, &IdentityError{Op: "user info", Err: err}
	}
	return &out, nil
}

// ListScopes returns the scopes the session's access token carries, as the
// server sees them.
func (s *Session) ListScopes(ctx context.Context) ([]string, error) {
	var out struct {
		Scopes []string `json:"scopes"`
	}
	if err := s.identityCall(ctx, http.MethodGet, "/identity/scopes", nil, bearerAuth, &out); err != nil {
		return nil, &IdentityError{Op: "scope listing", Err: err}
	}
	return out.Scopes, nil
}

// PartnerInfo describes the partner application this client belongs to.
type PartnerInfo struct {
	AppID   string `json:"app_id"`
	Name    string `json:"name"`
	Plan    string `json:"plan,omitempty"`
	Created string `json:"created,omitempty"`
}

// PartnerInfo fetches the partner application record for this client.
func (s *Session) PartnerInfo(ctx context.Context) (*PartnerInfo, error) {
	var out PartnerInfo
	if err := s.identityCall(ctx, http.MethodGet, "/partner/info", nil, clientAuth, &out); err != nil {
		return nil, &IdentityError{Op: "partner info", Err: err}
	}
	return &out, nil
}

// authMode selects how an identity call authenticates.
type authMode int

const (
	// clientAuth uses the client's basic credentials.
	clientAuth authMode = iota
	// bearerAuth uses the held access token.
	bearerAuth
)

// identityCall performs one identity API call and decodes the JSON
// response into out. No retry; same policy as the token endpoint calls.
func (s *Session) identityCall(ctx context.Context, method, path string, payload any, mode authMode, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoints.IdentityBaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	switch mode {
	case clientAuth:
		req.Header.Set("Authorization", s.identity.BasicAuth())
	case bearerAuth:
		token := s.Token()
		if token == nil || token.AccessToken == "" {
			return fmt.Errorf("session has no access token")
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &EndpointError{StatusCode: resp.StatusCode, Body: raw}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
