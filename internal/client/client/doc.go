// Package client contains the client-side building blocks of the authkeeper
// CLI.
//
// GRPCClient talks to the AuthService over gRPC. It keeps the current token
// pair, attaches the access token to every call and, when the server answers
// "token expired", refreshes the pair once and retries. Rotated pairs are
// handed to an optional callback so the CLI can persist them.
//
// InitDatabase opens the local SQLite file and applies the embedded goose
// migrations; the session repository lives in repositories/session.
//
// Status codes are mapped to the sentinel errors in errors.go; the server's
// message is kept so "refresh token reuse detected" reaches the user.
package client
