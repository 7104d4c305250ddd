// Command chorusd runs the sync daemon directly in the foreground. The
// `chorus daemon` subcommand wraps the same runtime; this binary exists for
// service managers that want a dedicated daemon executable.
package main
