// Package cli provides the interactive authkeeper command-line client.
//
// It wires configuration, the local session file and the gRPC client into a
// small REPL: register, login, refresh, logout, whoami, rotate-key and
// keygen. A session saved by an earlier run is resumed on start, and a
// background watcher pings the server to show whether it is reachable.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
