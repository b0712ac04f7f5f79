package models

import "time"

// RefreshToken is one link of a rotation chain. All links created from a
// single login share FamilyID; ReplacedBy points at the successor.
type RefreshToken struct {
	TokenID    string
	UserID     string
	FamilyID   string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
}

// Rotated reports whether the record was already consumed by a rotation.
func (t *RefreshToken) Rotated() bool {
	return t.ReplacedBy != nil
}

// Usable reports whether the record may still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ReplacedBy == nil && now.Before(t.ExpiresAt)
}

// BlocklistEntry marks an access token revoked until ExpiresAt.
type BlocklistEntry struct {
	TokenID   string
	ExpiresAt time.Time
}
