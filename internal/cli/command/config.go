// Package command provides CLI command definitions for tokpass.
package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpass/internal/cli/config"
	"github.com/yndnr/tokpass/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: configPathAction,
			},
			{
				Name:      "set",
				Usage:     "Set a key in the configuration file",
				ArgsUsage: "KEY VALUE",
				Description: "Keys: " + strings.Join(config.Keys(), ", ") + `

Only the file is read and written; environment variables and flags are
not saved.`,
				Action: configSet,
			},
			{
				Name:   "validate",
				Usage:  "Validate the effective configuration",
				Action: configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	values := cfg.ToMap()
	if cfg.Store.Passphrase != "" {
		values["store.passphrase"] = "***"
	}
	return output.NewFormatter(format).Format(stdout(c), values)
}

func configPathAction(c *cli.Context) error {
	fmt.Fprintln(stdout(c), configPath(c))
	return nil
}

func configSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: tokpass config set KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	path := configPath(c)
	if _, err := config.Set(path, key, value); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Set %s in %s\n", key, path)
	return nil
}

func configValidate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(stdout(c), "Configuration is valid.")
	return nil
}
