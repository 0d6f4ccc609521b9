// Package models - organization_member.go defines a user's membership in an organization.
package models

import "time"

// OrganizationMember represents a user's membership in an organization. Role is
// scoped to the organization and independent of the user's global role.
type OrganizationMember struct {
	OrganizationID string
	UserID         string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
}

// UserMembership includes organization details for a user's membership
type UserMembership struct {
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	Role             string    `json:"role"`
	CreatedAt        time.Time `json:"created_at"`
}
