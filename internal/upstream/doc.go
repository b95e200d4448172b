// Package upstream models the HTTP services protected by circuit
// breakers. Each upstream pairs a base URL and reverse proxy with the
// name of the circuit guarding it.
package upstream
