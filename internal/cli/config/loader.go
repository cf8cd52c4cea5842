// Package config provides CLI configuration for tokpass.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/maps"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/infra/confloader"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "TOKPASS_"

// BackendURLEnv is the unprefixed alias for backend_url.
const BackendURLEnv = "BACKEND_URL"

// LoadOptions selects the sources for Load.
type LoadOptions struct {
	// ConfigPath is the YAML file. Empty means DefaultConfigPath, which
	// may be absent; an explicit path must exist.
	ConfigPath string
	// DotenvPaths are read in order; missing files are skipped.
	DotenvPaths []string
	// Overrides are applied last, typically from command-line flags.
	Overrides map[string]any
}

// Load merges defaults, the YAML file, .env files, TOKPASS_* variables,
// BACKEND_URL and overrides, in that order of increasing precedence.
func Load(opts LoadOptions) (*CLIConfig, error) {
	path, optional := opts.ConfigPath, false
	if path == "" {
		path, optional = DefaultConfigPath(), true
	}

	l := confloader.NewLoader(
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithAlias(BackendURLEnv, "backend_url"),
	)
	if err := l.LoadDefaults(Default().ToMap()); err != nil {
		return nil, err
	}
	if err := l.LoadFile(path, optional); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	if err := l.LoadDotenv(opts.DotenvPaths...); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := l.LoadEnv(); err != nil {
		return nil, err
	}
	if err := l.LoadAliases(); err != nil {
		return nil, err
	}
	if len(opts.Overrides) > 0 {
		if err := l.LoadMap(opts.Overrides); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	cfg := &CLIConfig{}
	if err := l.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Metrics.Textfile = expandHome(cfg.Metrics.Textfile)
	cfg.Shell.History = expandHome(cfg.Shell.History)
	cfg.TLS.CAFile = expandHome(cfg.TLS.CAFile)
	return cfg, nil
}

// Keys returns every settable configuration key.
func Keys() []string {
	keys := make([]string, 0, 16)
	for k := range Default().ToMap() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var (
	validOutputs    = []string{OutputTable, OutputJSON, OutputYAML}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validCiphers    = []string{"", "aes-gcm", "chacha20-poly1305"}
)

// Validate checks the configuration and reports every problem found.
func (c *CLIConfig) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf(format, args...)))
	}

	if err := ValidateBackendURL(c.BackendURL); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(validOutputs, c.Output) {
		invalid("output %q must be one of %s", c.Output, strings.Join(validOutputs, ", "))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		invalid("log.level %q must be one of %s", c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		invalid("log.format %q must be text or json", c.Log.Format)
	}
	if !slices.Contains(validCiphers, c.Store.Cipher) {
		invalid("store.cipher %q must be empty, aes-gcm or chacha20-poly1305", c.Store.Cipher)
	}
	if !c.Store.Ephemeral && c.Store.Dir == "" {
		invalid("store.dir is required unless store.ephemeral is set")
	}
	if c.Login.Rate < 0 {
		invalid("login.rate must not be negative")
	}
	if c.Login.Burst < 0 {
		invalid("login.burst must not be negative")
	}
	if c.Login.Timeout < 0 {
		invalid("login.timeout must not be negative")
	}
	return errors.Join(errs...)
}

// ValidateBackendURL requires an absolute http(s) URL with a host.
func ValidateBackendURL(raw string) error {
	if raw == "" {
		return domain.ErrInvalidArgument.WithDetails("backend_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domain.ErrInvalidArgument.WithDetails("backend_url: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("backend_url %q must use http or https", raw))
	}
	if u.Host == "" {
		return domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("backend_url %q has no host", raw))
	}
	return nil
}

// Save writes cfg as YAML with mode 0600. An empty passphrase is omitted.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	flat := cfg.ToMap()
	if cfg.Store.Passphrase == "" {
		delete(flat, "store.passphrase")
	}
	data, err := yaml.Marshal(maps.Unflatten(flat, "."))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cli-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Set updates one key in the file at path, leaving environment and flags
// out of it, validates the result and saves it.
func Set(path, key, value string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if !slices.Contains(Keys(), key) {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown key %q", key))
	}

	l := confloader.NewLoader(confloader.WithEnvPrefix(EnvPrefix))
	if err := l.LoadDefaults(Default().ToMap()); err != nil {
		return nil, err
	}
	if err := l.LoadFile(path, true); err != nil {
		return nil, err
	}
	if err := l.LoadMap(map[string]any{key: value}); err != nil {
		return nil, err
	}

	cfg := &CLIConfig{}
	if err := l.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := Save(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
