// Package credentials holds the authentication material a partner
// application presents to the Meetwire API.
//
// Two kinds of credentials exist:
//
//   - APIKey: a static key sent as a request header, for server-to-server
//     integrations that do not act on behalf of a user.
//   - OAuthIdentity: a registered OAuth client (id, secret, redirect URI,
//     scopes), consumed by the auth package to run the token lifecycle.
//
// Credentials are value objects. They carry no network logic beyond header
// formatting, and their String methods redact secret material so they can
// be logged safely.
package credentials
