// Package cmd implements the command-line interface for meetwire.
//
// This package provides the following commands:
//   - serve: Start the webhook receiver
//   - token: Manage OAuth tokens (exchange, refresh, client-credentials, introspect, revoke)
//   - webhook: Sign and verify webhook payloads
//   - version: Display version information
package cmd
