// Package models - user.go defines portal accounts and their stored preferences.
package models

import "time"

// User represents a portal account. Role is the global role; IsActive is the
// account-wide switch checked on every authenticated request.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserPreference holds per-user settings that outlive a session token
type UserPreference struct {
	UserID                string
	CurrentOrganizationID *string // nil when the user has not picked one
	UpdatedAt             time.Time
}
