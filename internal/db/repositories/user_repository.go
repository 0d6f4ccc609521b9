// Package repositories implements the data access layer for the client portal.
// Each repository type encapsulates the queries for one table group; gates and
// handlers reach the database only through this layer.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/client-portal/portal/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, name, role, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetPreference retrieves the stored preferences for a user. Returns nil when
// the user has never saved any.
func (r *UserRepository) GetPreference(ctx context.Context, userID string) (*models.UserPreference, error) {
	query := `
		SELECT user_id, current_organization_id, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	pref := &models.UserPreference{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.CurrentOrganizationID,
		&pref.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user preference: %w", err)
	}
	return pref, nil
}
