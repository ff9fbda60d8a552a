package models

import "time"

// RefreshToken is the persisted record of an issued refresh token.
// Revoked only ever moves from false to true; no other field changes after
// insertion.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// ExpiredAt reports whether the record is past its expiry at now.
// The expiry instant itself counts as expired.
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
