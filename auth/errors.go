package auth

import (
	"errors"
	"fmt"
)

// ErrNoRefreshToken is returned by Refresh when neither the held TokenSet
// nor the caller supplies a refresh token. No network call is made.
var ErrNoRefreshToken = errors.New("auth: no refresh token available")

// ExchangeError wraps a failed authorization code exchange.
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("auth: authorization code exchange failed: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// RefreshError wraps a failed token refresh. The previously held TokenSet
// is left in place so the caller can retry or fall back to prompting
// re-authorization.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("auth: token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// RevocationError wraps a failed token revocation. Local state is not
// cleared; the caller decides.
type RevocationError struct {
	Err error
}

func (e *RevocationError) Error() string {
	return fmt.Sprintf("auth: token revocation failed: %v", e.Err)
}

func (e *RevocationError) Unwrap() error { return e.Err }

// IdentityError wraps a failed identity operation (introspection, user
// info, consent, passwordless login, partner info).
type IdentityError struct {
	Op  string
	Err error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("auth: %s failed: %v", e.Op, e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }

// EndpointError is the cause attached when the authorization server
// answers with a non-2xx status.
type EndpointError struct {
	StatusCode int
	Body       []byte
}

func (e *EndpointError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("auth endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("auth endpoint returned status %d: %s", e.StatusCode, e.Body)
}
