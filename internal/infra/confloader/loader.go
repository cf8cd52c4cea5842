package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "TOKPASS_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	aliases   map[string]string
	dotenv    map[string]string
	getenv    func(string) (string, bool)
}

// Option configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithAlias maps an unprefixed environment variable onto a key,
// e.g. BACKEND_URL onto backend_url.
func WithAlias(envName, key string) Option {
	return func(l *Loader) {
		l.aliases[envName] = key
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		aliases:   make(map[string]string),
		dotenv:    make(map[string]string),
		getenv:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDefaults loads a flat map of default values.
func (l *Loader) LoadDefaults(defaults map[string]any) error {
	return l.LoadMap(defaults)
}

// LoadFile loads configuration from a YAML file. A missing file is an error
// unless optional is set.
func (l *Loader) LoadFile(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if optional {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadDotenv reads .env files without modifying the process environment.
// Missing files are skipped. Prefixed variables are applied immediately;
// every variable is kept for alias lookups.
func (l *Loader) LoadDotenv(paths ...string) error {
	vars := make(map[string]string)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		m, err := godotenv.Read(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		for k, v := range m {
			vars[k] = v
			l.dotenv[k] = v
		}
	}

	flat := make(map[string]any)
	for name, v := range vars {
		if strings.HasPrefix(name, l.envPrefix) {
			flat[l.envKey(name)] = v
		}
	}
	if len(flat) == 0 {
		return nil
	}
	return l.LoadMap(flat)
}

// LoadEnv loads prefixed environment variables.
// TOKPASS_STORE_DIR becomes store.dir; names matching a known key keep its
// underscores, so TOKPASS_BACKEND_URL becomes backend_url.
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", l.envKey)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadAliases applies the unprefixed aliases. The process environment wins
// over values read from .env files.
func (l *Loader) LoadAliases() error {
	flat := make(map[string]any)
	for name, key := range l.aliases {
		if v, ok := l.getenv(name); ok && v != "" {
			flat[key] = v
			continue
		}
		if v, ok := l.dotenv[name]; ok && v != "" {
			flat[key] = v
		}
	}
	if len(flat) == 0 {
		return nil
	}
	return l.LoadMap(flat)
}

// envKey turns a prefixed variable name into a config key.
func (l *Loader) envKey(name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
	for _, key := range l.k.Keys() {
		if strings.ReplaceAll(key, ".", "_") == s {
			return key
		}
	}
	return strings.ReplaceAll(s, "_", ".")
}

// LoadMap loads a flat map whose keys use "." as delimiter.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal decodes the merged configuration into target using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Get returns a value by key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// GetString returns a string value.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// Exists reports whether key has a value.
func (l *Loader) Exists(key string) bool {
	return l.k.Exists(key)
}

// All returns the merged configuration as a flat map.
func (l *Loader) All() map[string]any {
	return l.k.All()
}

// Keys returns all configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
