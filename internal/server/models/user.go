// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an entry of the user directory.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
