// Package confloader provides the layered configuration loader.
//
// It uses koanf underneath. Sources are applied in call order, later ones
// overriding earlier ones; the CLI uses:
//
//  1. Default values
//  2. YAML configuration file
//  3. .env files (read without touching the process environment)
//  4. Prefixed environment variables (TOKPASS_*)
//  5. Unprefixed aliases such as BACKEND_URL
//  6. Command-line flags
//
// Watcher reports changes to a configuration file so long-running commands
// can re-read it.
package confloader
