// Package command provides CLI command definitions for tokpass.
package command

import (
	"context"

	"github.com/urfave/cli/v2"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"whoami"},
		Usage:   "Show the current view (profile or login)",
		Action:  statusAction,
	}
}

func statusAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.load(ctx); err != nil {
			return err
		}
		rt.render()
		return nil
	})
}
