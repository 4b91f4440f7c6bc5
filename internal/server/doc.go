// Package server runs the webhook receiver: an HTTP server that mounts
// the webhook verification middleware in front of a dispatcher, plus
// health endpoints for Kubernetes probes and a dedicated Prometheus
// metrics server.
package server
