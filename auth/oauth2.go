package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSource adapts the session to the golang.org/x/oauth2 TokenSource
// interface, so the session can feed libraries built on oauth2 transports.
//
// The returned source refreshes through the session, sharing its
// single-flight guard with direct Refresh callers.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, session: s}
}

// HTTPClient returns an *http.Client whose transport injects and refreshes
// the session's bearer token on every request.
func (s *Session) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s.TokenSource(ctx))
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	if ts.session.Expired() {
		if _, err := ts.session.Refresh(ts.ctx, ""); err != nil {
			return nil, err
		}
	}

	token := ts.session.Token()
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("auth: session has no access token")
	}
	return token.OAuth2Token(), nil
}
