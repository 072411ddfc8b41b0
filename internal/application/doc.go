// Package application wires configuration, the signing resolver, storage and
// the HTTP API together. It owns the lifetime of materialized keystores: every
// entry point (resolve, exec, serve) releases them when it finishes.
package application
