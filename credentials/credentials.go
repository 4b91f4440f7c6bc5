package credentials

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader is the header used for API key authentication when no
// custom header is configured.
const DefaultAPIKeyHeader = "X-Api-Key"

// APIKey authenticates requests with a static partner key.
type APIKey struct {
	// Key is the secret key value.
	Key string

	// Header is the request header the key is sent in.
	// Defaults to DefaultAPIKeyHeader when empty.
	Header string

	// ClientID optionally identifies the partner application the key
	// belongs to. It is informational and never sent on the wire.
	ClientID string
}

// NewAPIKey creates an APIKey using the default header.
func NewAPIKey(key string) *APIKey {
	return &APIKey{Key: key}
}

// HeaderName returns the header the key is sent in.
func (k *APIKey) HeaderName() string {
	if k.Header == "" {
		return DefaultAPIKeyHeader
	}
	return k.Header
}

// Apply attaches the key to an outbound request. It implements the
// client.Authenticator interface.
func (k *APIKey) Apply(_ context.Context, req *http.Request) error {
	if k.Key == "" {
		return fmt.Errorf("api key is empty")
	}
	req.Header.Set(k.HeaderName(), k.Key)
	return nil
}

// Rotate replaces the key value. This is the only mutation an APIKey
// supports after construction.
func (k *APIKey) Rotate(newKey string) {
	k.Key = newKey
}

// String returns a loggable representation with the key redacted.
func (k *APIKey) String() string {
	return fmt.Sprintf("APIKey{header: %s, key: %s}", k.HeaderName(), redact(k.Key))
}

// OAuthIdentity is a registered OAuth client for the Meetwire platform.
type OAuthIdentity struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// BasicAuth returns the value for an Authorization header carrying the
// client credentials, as required by the token endpoint.
func (o *OAuthIdentity) BasicAuth() string {
	raw := o.ClientID + ":" + o.ClientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// ScopeString returns the space-separated scope list used in OAuth
// requests. Empty when no scopes are configured.
func (o *OAuthIdentity) ScopeString() string {
	return strings.Join(o.Scopes, " ")
}

// String returns a loggable representation with the secret redacted.
func (o *OAuthIdentity) String() string {
	return fmt.Sprintf("OAuthIdentity{client_id: %s, client_secret: %s, redirect_uri: %s}",
		o.ClientID, redact(o.ClientSecret), o.RedirectURI)
}

// redact masks a secret for logging, keeping only its length.
// Even short prefixes can aid attacks, so no content is exposed.
func redact(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[secret:%d chars]", len(secret))
}
