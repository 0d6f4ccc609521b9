// project_repository.go implements ProjectRepository on sqlx, scanning rows
// straight into models.Project via db tags.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/client-portal/portal/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, organization_id, name, status, owner_user_id, assigned_developer_user_id, created_at, updated_at`

// GetByID retrieves a project by ID. Returns nil when it does not exist.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := r.db.GetContext(ctx, &p, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// ListByAssignedDeveloper lists projects assigned to a developer
func (r *ProjectRepository) ListByAssignedDeveloper(ctx context.Context, userID string) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.db.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM projects WHERE assigned_developer_user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned projects: %w", err)
	}
	return projects, nil
}

// ListAll lists every project, newest first
func (r *ProjectRepository) ListAll(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	err := r.db.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}
