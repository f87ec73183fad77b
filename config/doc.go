// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration
// structure including server settings, breaker defaults, guarded upstreams,
// and the probe interval.
package config
