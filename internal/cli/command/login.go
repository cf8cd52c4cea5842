// Package command provides CLI command definitions for tokpass.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpass/internal/cli/output"
	"github.com/yndnr/tokpass/internal/cli/repl"
	"github.com/yndnr/tokpass/internal/core/domain"
)

// errLoginFailed is returned after the form errors have been printed.
var errLoginFailed = errors.New("login failed")

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with email and password",
		Description: `Prompts for any credential not given as a flag. The password is read
without echo when stdin is a terminal.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Account email",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password (prompted when omitted)",
				EnvVars: []string{"TOKPASS_PASSWORD"},
			},
		},
		Action: loginAction,
	}
}

func loginAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if err := rt.load(ctx); err != nil {
			return err
		}
		rt.render()
		if rt.store.Current().Authenticated() {
			fmt.Fprintln(rt.errOut, "Already logged in. Run 'tokpass logout' first to switch accounts.")
			return nil
		}

		prompt := repl.New(
			repl.WithIO(rt.in, rt.errOut),
			repl.WithSecretReader(secretReader(rt.in, rt.errOut)),
		)
		err := submitLogin(ctx, rt, prompt, c.String("email"), c.String("password"))
		rt.render()
		return err
	})
}

// prompter reads credentials interactively.
type prompter interface {
	ReadLine(ctx context.Context, label string) (string, error)
	ReadSecret(ctx context.Context, label string) (string, error)
}

// submitLogin prompts for missing credentials and submits the login form.
// Form errors are printed to the runtime's output.
func submitLogin(ctx context.Context, rt *runtime, p prompter, email, password string) error {
	var err error
	if email == "" {
		if email, err = p.ReadLine(ctx, "Email: "); err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}
	if password == "" {
		if password, err = p.ReadSecret(ctx, "Password: "); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	spin := output.NewSpinner(rt.errOut, "Signing in...")
	spin.Start()
	errs := rt.form.Submit(ctx, email, password)
	if !errs.Empty() {
		spin.Fail("Login failed")
		if err := output.WriteFormErrors(formErrorWriter(rt), rt.format, errs); err != nil {
			return err
		}
		return errLoginFailed
	}
	spin.Success("Logged in")

	if err := rt.form.LastError(); errors.Is(err, domain.ErrPersistence) {
		fmt.Fprintf(rt.errOut, "warning: session is active but could not be saved: %v\n", err)
	}
	return nil
}

// formErrorWriter keeps table-formatted errors off stdout.
func formErrorWriter(rt *runtime) io.Writer {
	if rt.format == output.FormatTable {
		return rt.errOut
	}
	return rt.out
}
