// Package main provides the entry point for tokpass.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yndnr/tokpass/internal/cli/command"
	"github.com/yndnr/tokpass/internal/infra/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	app := command.App()

	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
