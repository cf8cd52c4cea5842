// Package command provides CLI command definitions for tokpass.
package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out and remove the saved session",
		Action: logoutAction,
	}
}

func logoutAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.load(ctx); err != nil {
			return err
		}
		if err := logout(ctx, rt); err != nil {
			return err
		}
		rt.render()
		return nil
	})
}

// logout clears the session. Logging out while logged out is not an error.
func logout(ctx context.Context, rt *runtime) error {
	if err := rt.store.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
