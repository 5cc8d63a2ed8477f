// Package server exposes the HTTP API and operational endpoints.
//
// The API server serves per-user sync, task, meeting, and schedule routes
// plus Kubernetes health probes. Prometheus metrics run on a separate
// listener so operational data never shares a port with user traffic.
package server
