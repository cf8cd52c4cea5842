// Package main provides the entry point for tokpass.
//
// tokpass signs in to a backend with email and password, keeps the
// session credentials in encrypted storage on this device, and shows the
// profile or login view depending on the session. It supports both
// single-command mode and an interactive shell.
//
// Usage:
//
//	tokpass [global options] command [command options]
//
// Commands:
//
//	login    Sign in with email and password
//	logout   Sign out and remove the saved session
//	status   Show the current view
//	shell    Start an interactive shell
//	config   Configuration management
package main
