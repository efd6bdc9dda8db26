// Package cmd implements the operations behind the CLI mode flags: login,
// status, refresh, get-token, and logout.
package cmd

// LoginOptions controls the interactive behavior of the login flow.
type LoginOptions struct {
	// NoBrowser disables the automatic browser open for the verification URL.
	NoBrowser bool
}
