// Package meetings is a typed facade over the Meetwire meetings API.
//
// A Service wraps a client.Client and exposes meeting CRUD, listing with
// pagination, and recording lookup. It carries no retry or authentication
// logic of its own; both come from the underlying client.
package meetings
