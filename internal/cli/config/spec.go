// Package config provides CLI configuration for tokpass.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// CLIConfig is the configuration for the tokpass CLI.
type CLIConfig struct {
	BackendURL string        `koanf:"backend_url" yaml:"backend_url"`
	Output     string        `koanf:"output" yaml:"output"` // table, json, yaml
	Store      StoreConfig   `koanf:"store" yaml:"store"`
	Log        LogConfig     `koanf:"log" yaml:"log"`
	Metrics    MetricsConfig `koanf:"metrics" yaml:"metrics"`
	Login      LoginConfig   `koanf:"login" yaml:"login"`
	Shell      ShellConfig   `koanf:"shell" yaml:"shell"`
	TLS        TLSConfig     `koanf:"tls" yaml:"tls"`
}

// StoreConfig selects and configures secure storage.
type StoreConfig struct {
	Dir        string `koanf:"dir" yaml:"dir"`
	Ephemeral  bool   `koanf:"ephemeral" yaml:"ephemeral"`
	Passphrase string `koanf:"passphrase" yaml:"passphrase,omitempty"`
	Cipher     string `koanf:"cipher" yaml:"cipher"` // "", aes-gcm, chacha20-poly1305
}

// LogConfig configures diagnostics logging.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	File   string `koanf:"file" yaml:"file"`
}

// MetricsConfig configures the metrics textfile written on exit.
type MetricsConfig struct {
	Textfile string `koanf:"textfile" yaml:"textfile"`
}

// LoginConfig tunes the login form.
type LoginConfig struct {
	Rate    float64       `koanf:"rate" yaml:"rate"` // submits per second, 0 disables
	Burst   int           `koanf:"burst" yaml:"burst"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// Precheck rejects empty fields and malformed emails without a request.
	Precheck bool `koanf:"precheck" yaml:"precheck"`
}

// ShellConfig configures the interactive shell.
type ShellConfig struct {
	History string `koanf:"history" yaml:"history"`
}

// TLSConfig configures trust for https backends.
type TLSConfig struct {
	CAFile string `koanf:"ca_file" yaml:"ca_file"` // PEM file or directory added to the system roots
}

// HomeDir returns ~/.tokpass.
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".tokpass")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "cli.yaml")
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	home := HomeDir()
	return &CLIConfig{
		BackendURL: "http://localhost:8000",
		Output:     OutputTable,
		Store: StoreConfig{
			Dir: filepath.Join(home, "store"),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Login: LoginConfig{
			Burst:   3,
			Timeout: 30 * time.Second,
		},
		Shell: ShellConfig{
			History: filepath.Join(home, "history"),
		},
	}
}

// ToMap flattens the configuration into dotted keys. Durations are
// rendered as strings so the map round-trips through YAML.
func (c *CLIConfig) ToMap() map[string]any {
	return map[string]any{
		"backend_url":      c.BackendURL,
		"output":           c.Output,
		"store.dir":        c.Store.Dir,
		"store.ephemeral":  c.Store.Ephemeral,
		"store.passphrase": c.Store.Passphrase,
		"store.cipher":     c.Store.Cipher,
		"log.level":        c.Log.Level,
		"log.format":       c.Log.Format,
		"log.file":         c.Log.File,
		"metrics.textfile": c.Metrics.Textfile,
		"login.rate":       c.Login.Rate,
		"login.burst":      c.Login.Burst,
		"login.timeout":    c.Login.Timeout.String(),
		"login.precheck":   c.Login.Precheck,
		"shell.history":    c.Shell.History,
		"tls.ca_file":      c.TLS.CAFile,
	}
}
