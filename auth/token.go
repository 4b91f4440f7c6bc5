package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenSet is the credential material of one authenticated session.
//
// A zero ExpiresAt means the token never expires as far as this client is
// concerned; tracking validity is then the caller's responsibility.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
	Scopes       []string
}

// Expired reports whether the access token has passed its expiry at the
// given instant. A TokenSet without ExpiresAt is never expired.
func (t *TokenSet) Expired(now time.Time) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// OAuth2Token converts the TokenSet for use with golang.org/x/oauth2
// consumers.
func (t *TokenSet) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// IDTokenClaims are the OpenID Connect claims this SDK surfaces from the
// ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IDTokenClaims parses the ID token without verifying its signature.
//
// The claims are convenient for display but must not be used for
// authorization decisions; the token's signature is checked by the
// authorization server, not here.
func (t *TokenSet) IDTokenClaims() (*IDTokenClaims, error) {
	if t == nil || t.IDToken == "" {
		return nil, fmt.Errorf("auth: token set has no id token")
	}

	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.IDToken, claims); err != nil {
		return nil, fmt.Errorf("auth: parsing id token: %w", err)
	}
	return claims, nil
}

// tokenResponse is the wire shape of the token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// tokenSet converts a token endpoint response into a TokenSet, stamping
// expiry from the current time.
func (r *tokenResponse) tokenSet(now time.Time) *TokenSet {
	ts := &TokenSet{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		IDToken:      r.IDToken,
	}
	if r.ExpiresIn > 0 {
		ts.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	if r.Scope != "" {
		ts.Scopes = strings.Fields(r.Scope)
	}
	return ts
}
