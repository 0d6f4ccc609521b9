// Package models - organization.go defines the Organization model for a client
// tenant with a URL-safe name and human-readable display name.
package models

import "time"

// Organization represents a client organization
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
