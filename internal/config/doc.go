// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. It also takes the one-time snapshot of the
// build environment (CI detection and signing secrets) that the resolver works
// from, so nothing downstream reads the process environment.
package config
