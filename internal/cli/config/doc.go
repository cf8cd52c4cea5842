// Package config provides CLI configuration for tokpass.
//
//   - spec.go: CLIConfig struct and defaults (~/.tokpass/cli.yaml)
//   - loader.go: layered loading, validation and saving
//
// BACKEND_URL is honoured as an unprefixed alias of backend_url, so a
// plain BACKEND_URL in the environment or a .env file is enough to point the
// login form at a server.
package config
