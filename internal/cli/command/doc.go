// Package command provides CLI command definitions for tokpass.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command and global flags
//   - runtime.go: Wiring of config, logging, metrics, storage and the
//     session store, router and login form
//   - login.go: Login command and the shared submit flow
//   - logout.go: Logout command
//   - status.go: Status command
//   - shell.go: Interactive shell
//   - config.go: Configuration subcommand group
//
// Commands follow a consistent pattern of building the runtime, calling
// the session services, and rendering the routed view.
package command
