// Package command provides CLI command definitions for tokpass.
package command

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpass/internal/cli/repl"
	"github.com/yndnr/tokpass/internal/infra/confloader"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"sh"},
		Usage:   "Start an interactive shell",
		Description: `The prompt shows the current view. The view is re-rendered whenever
the session changes. Log level changes in the config file apply live.`,
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		history := repl.NewHistory(rt.cfg.Shell.History)
		if err := history.Load(); err != nil {
			rt.logger.Warn("failed to load shell history", "error", err)
		}
		rt.shutdown.OnShutdown("history", func(context.Context) error {
			return history.Save()
		})

		if err := watchConfig(c, rt); err != nil {
			rt.logger.Warn("config changes will not apply live", "error", err)
		}

		r := repl.New(
			repl.WithIO(rt.in, rt.out),
			repl.WithPrompt(func() string {
				return fmt.Sprintf("tokpass [%s]> ", rt.router.View())
			}),
			repl.WithHistory(history),
			repl.WithSecretReader(secretReader(rt.in, rt.out)),
		)
		registerShellCommands(r, rt)

		fmt.Fprintf(rt.out, "tokpass shell, connected to %s. Type 'help' for commands.\n", rt.cfg.BackendURL)
		rt.router.Start()
		rt.store.InitializeAsync(ctx)

		return r.Run(ctx)
	})
}

func registerShellCommands(r *repl.REPL, rt *runtime) {
	r.Register("login", "Sign in: login [EMAIL]", func(ctx context.Context, args []string) error {
		if err := rt.store.WaitLoaded(ctx); err != nil {
			return err
		}
		if rt.store.Current().Authenticated() {
			fmt.Fprintln(r.Output(), "Already logged in. Run 'logout' first to switch accounts.")
			return nil
		}
		email := ""
		if len(args) > 0 {
			email = args[0]
		}
		err := submitLogin(ctx, rt, r, email, "")
		if errors.Is(err, errLoginFailed) {
			return nil
		}
		return err
	})
	r.Register("logout", "Sign out", func(ctx context.Context, _ []string) error {
		return logout(ctx, rt)
	})
	r.Register("status", "Show the current view", func(context.Context, []string) error {
		rt.render()
		return nil
	})
}

// watchConfig applies log level changes from the config file while the
// shell runs. A missing config file is not watched.
func watchConfig(c *cli.Context, rt *runtime) error {
	if _, err := os.Stat(rt.configPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(rt.logger))
	if err != nil {
		return err
	}
	if err := w.Watch(rt.configPath); err != nil {
		_ = w.Stop()
		return err
	}
	w.OnChange(func(path string) {
		cfg, err := loadConfig(c)
		if err != nil {
			rt.logger.Warn("ignoring invalid config change", "path", path, "error", err)
			return
		}
		level := strings.ToLower(cfg.Log.Level)
		if level == logger.GetLevel() {
			return
		}
		logger.SetLevel(level)
		rt.logger.Info("log level changed", "level", level)
	})
	w.StartAsync()

	rt.shutdown.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}
