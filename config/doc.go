// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, logging, circuit breaker defaults, and the
// protected upstream services.
package config
