// Package models - project.go defines client projects and the ownership fields
// the resource gate reads.
package models

import "time"

// Project is a client engagement owned by one customer and optionally
// assigned to one developer.
type Project struct {
	ID                      string    `db:"id" json:"id"`
	OrganizationID          *string   `db:"organization_id" json:"organization_id,omitempty"`
	Name                    string    `db:"name" json:"name"`
	Status                  string    `db:"status" json:"status"`
	OwnerUserID             string    `db:"owner_user_id" json:"owner_user_id"`
	AssignedDeveloperUserID *string   `db:"assigned_developer_user_id" json:"assigned_developer_user_id,omitempty"`
	CreatedAt               time.Time `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at" json:"updated_at"`
}
