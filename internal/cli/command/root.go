// Package command provides CLI command definitions for tokpass.
package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpass/internal/cli/config"
	"github.com/yndnr/tokpass/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tokpass",
		Usage:   "Sign in to a backend and keep the session on this device",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			StatusCommand(),
			ShellCommand(),
			ConfigCommand(),
		},
		Action: statusAction,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "backend-url",
			Aliases: []string{"b"},
			Usage:   "Backend base URL (e.g., https://api.example.com)",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (default ~/.tokpass/cli.yaml)",
			EnvVars: []string{config.EnvPrefix + "CONFIG"},
		},
		&cli.StringFlag{
			Name:  "store-dir",
			Usage: "Secure storage directory",
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Keep the session in memory only",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output (same as --log-level debug)",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	BackendURL string
	ConfigPath string
	StoreDir   string
	Ephemeral  bool
	Output     string
	LogLevel   string
	LogFormat  string
	Verbose    bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		BackendURL: c.String("backend-url"),
		ConfigPath: c.String("config"),
		StoreDir:   c.String("store-dir"),
		Ephemeral:  c.Bool("ephemeral"),
		Output:     c.String("output"),
		LogLevel:   c.String("log-level"),
		LogFormat:  c.String("log-format"),
		Verbose:    c.Bool("verbose"),
	}
}

// Overrides returns the configuration keys set by flags. Unset flags are
// left out so the file and environment still apply.
func (f *GlobalFlags) Overrides() map[string]any {
	m := make(map[string]any)
	if f.BackendURL != "" {
		m["backend_url"] = f.BackendURL
	}
	if f.StoreDir != "" {
		m["store.dir"] = f.StoreDir
	}
	if f.Ephemeral {
		m["store.ephemeral"] = true
	}
	if f.Output != "" {
		m["output"] = f.Output
	}
	if f.LogLevel != "" {
		m["log.level"] = f.LogLevel
	}
	if f.LogFormat != "" {
		m["log.format"] = f.LogFormat
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	return m
}

// loadConfig loads the configuration for c without validating it.
func loadConfig(c *cli.Context) (*config.CLIConfig, error) {
	flags := ParseGlobalFlags(c)
	return config.Load(config.LoadOptions{
		ConfigPath:  flags.ConfigPath,
		DotenvPaths: []string{".env"},
		Overrides:   flags.Overrides(),
	})
}

// configPath returns the configuration file in effect.
func configPath(c *cli.Context) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func stdin(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

// PrintError prints an error message to stderr.
func PrintError(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(stderr(c), "error: "+format+"\n", args...)
}
