// Package handler provides the HTTP-layer collaborators of the circuit
// breaker: a reverse-proxy guard that translates an open circuit into
// 503 responses with a Retry-After header, status endpoints for single
// and bulk circuit observability, and administrative reset/force-open
// endpoints.
package handler
