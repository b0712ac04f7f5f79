// Package models holds the records persisted by the server.
package models

import "time"

// Role names recognised by the authorization layer.
const (
	RoleDeveloper = "developer"
	RoleReporter  = "reporter"
	RoleAssignee  = "assignee"
	RoleManager   = "manager"
	RoleAdmin     = "admin"
)

// User is owned by the CRUD layer; the auth core only reads it and checks
// PasswordHash.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
