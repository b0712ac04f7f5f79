// Package models holds the client-side data types.
package models

import "time"

// Session is the token pair the CLI keeps between runs.
type Session struct {
	Login            string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Empty reports whether there is nothing to resume.
func (s Session) Empty() bool {
	return s.RefreshToken == ""
}

// User is the account as reported by the server.
type User struct {
	ID       string
	Username string
	Email    string
	Role     string
}
