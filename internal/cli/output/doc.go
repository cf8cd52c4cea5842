// Package output provides output formatting for the tokpass CLI.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: key/value tables on text/tabwriter
//   - encode.go: JSON and YAML encodings
//   - view.go: the loading, login and profile screens
//   - spinner.go: progress animation while a login is in flight
//
// Screens go to stdout; diagnostics never do.
package output
