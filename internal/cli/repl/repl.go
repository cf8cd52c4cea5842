// Package repl provides the interactive shell for the tokpass CLI.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrExit stops the loop without an error when returned by a handler.
var ErrExit = errors.New("repl: exit")

// Handler runs one command. args excludes the command name.
type Handler func(ctx context.Context, args []string) error

type command struct {
	usage   string
	handler Handler
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     *lineReader
	output    io.Writer
	prompt    func() string
	secret    func(label string) (string, error)
	completer *Completer
	history   *History
	commands  map[string]command
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = newLineReader(in)
		r.output = out
	}
}

// WithPrompt sets a function evaluated before every read.
func WithPrompt(prompt func() string) Option {
	return func(r *REPL) {
		r.prompt = prompt
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// WithSecretReader sets how secrets are read, e.g. without echo on a
// terminal. Without it secrets are read as ordinary lines.
func WithSecretReader(fn func(label string) (string, error)) Option {
	return func(r *REPL) {
		r.secret = fn
	}
}

// New creates a REPL on stdin/stdout.
func New(opts ...Option) *REPL {
	r := &REPL{
		input:     newLineReader(os.Stdin),
		output:    os.Stdout,
		prompt:    func() string { return "tokpass> " },
		completer: NewCompleter("help", "history", "exit", "quit"),
		history:   NewHistory(""),
		commands:  make(map[string]command),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a command.
func (r *REPL) Register(name, usage string, h Handler) {
	r.commands[name] = command{usage: usage, handler: h}
	r.completer.Add(name)
}

// Output returns the writer commands should print to.
func (r *REPL) Output() io.Writer {
	return r.output
}

// ReadLine prints label and reads one line.
func (r *REPL) ReadLine(ctx context.Context, label string) (string, error) {
	fmt.Fprint(r.output, label)
	line, err := r.input.next(ctx)
	return strings.TrimSpace(line), err
}

// ReadSecret reads a secret with the configured secret reader.
func (r *REPL) ReadSecret(ctx context.Context, label string) (string, error) {
	if r.secret != nil {
		return r.secret(label)
	}
	fmt.Fprint(r.output, label)
	line, err := r.input.next(ctx)
	return strings.TrimRight(line, "\r\n"), err
}

// Run reads and executes commands until exit, EOF or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	for {
		fmt.Fprint(r.output, r.prompt())

		line, err := r.input.next(ctx)
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, "?") {
			r.suggest(strings.TrimSpace(strings.TrimSuffix(line, "?")))
			continue
		}

		r.history.Add(line)

		if err := r.execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "exit", "quit":
		return ErrExit
	case "help":
		r.help()
		return nil
	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
		}
		return nil
	}

	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for a list", name)
	}
	return cmd.handler(ctx, args)
}

func (r *REPL) help() {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.output, "Commands:")
	for _, name := range names {
		fmt.Fprintf(r.output, "  %-10s %s\n", name, r.commands[name].usage)
	}
	fmt.Fprintf(r.output, "  %-10s %s\n", "history", "Show command history")
	fmt.Fprintf(r.output, "  %-10s %s\n", "help", "Show this help")
	fmt.Fprintf(r.output, "  %-10s %s\n", "exit", "Leave the shell")
	fmt.Fprintln(r.output, "End a line with '?' to list matching commands.")
}

func (r *REPL) suggest(prefix string) {
	matches := r.completer.Complete(prefix)
	if len(matches) == 0 {
		fmt.Fprintln(r.output, "(no matches)")
		return
	}
	fmt.Fprintln(r.output, strings.Join(matches, "  "))
}

// lineReader reads lines on demand so a pending read can be abandoned when
// ctx is cancelled. An abandoned read is delivered to the next caller.
type lineReader struct {
	reader  *bufio.Reader
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func newLineReader(in io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReader(in)}
}

func (l *lineReader) next(ctx context.Context) (string, error) {
	if l.pending == nil {
		ch := make(chan lineResult, 1)
		l.pending = ch
		go func() {
			line, err := l.reader.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	select {
	case res := <-l.pending:
		l.pending = nil
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
