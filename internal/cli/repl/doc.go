// Package repl provides the interactive shell for the tokpass CLI.
//
//   - repl.go: the read-eval-print loop and command dispatch
//   - completer.go: prefix completion, triggered by a trailing "?"
//   - history.go: command history persisted between sessions
//
// The prompt is recomputed before every read, so it follows the routed
// view of the session store.
package repl
