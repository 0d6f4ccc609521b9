package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/client-portal/portal/internal/auth"
	"github.com/client-portal/portal/internal/db/repositories"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID    = "7d3c2c4e-4a53-4f3c-9f57-0a0d9c1b8f01"
	orgID     = "1b2e5f9a-3c4d-4e5f-8a9b-0c1d2e3f4a5b"
	projectID = "9f8e7d6c-5b4a-4392-8170-6f5e4d3c2b1a"
	devID     = "2c3d4e5f-6a7b-4c8d-9e0f-1a2b3c4d5e6f"
)

var errDB = errors.New("connection reset")

func newTestDirectory(t *testing.T) (*SQLDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLDirectory(
		repositories.NewUserRepository(db),
		repositories.NewOrganizationRepository(db),
		repositories.NewProjectRepository(sqlx.NewDb(db, "sqlmock")),
	), mock
}

var userCols = []string{"id", "email", "name", "role", "is_active", "created_at", "updated_at"}

func TestGetAccount(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM users WHERE id").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(userID, "dana@example.com", "Dana", "developer", true, time.Now(), time.Now()))

		acct, err := dir.GetAccount(context.Background(), userID)
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, auth.RoleDeveloper, acct.Role)
		assert.Equal(t, "Dana", acct.Name)
		assert.True(t, acct.IsActive)
	})

	t.Run("absent", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM users WHERE id").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(userCols))

		acct, err := dir.GetAccount(context.Background(), userID)
		require.NoError(t, err)
		assert.Nil(t, acct)
	})

	t.Run("non uuid id is absent without a query", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		acct, err := dir.GetAccount(context.Background(), "not-a-uuid")
		require.NoError(t, err)
		assert.Nil(t, acct)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown stored role is an error", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM users WHERE id").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(userID, "x@example.com", "X", "superuser", true, time.Now(), time.Now()))

		_, err := dir.GetAccount(context.Background(), userID)
		require.Error(t, err)
		_, classified := auth.AsError(err)
		assert.False(t, classified, "infrastructure errors must not be classified")
	})

	t.Run("lookup failure is returned", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM users WHERE id").
			WithArgs(userID).
			WillReturnError(errDB)

		_, err := dir.GetAccount(context.Background(), userID)
		assert.ErrorIs(t, err, errDB)
	})
}

func TestGetOrganizationPreference(t *testing.T) {
	cols := []string{"user_id", "current_organization_id", "updated_at"}

	t.Run("set", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM user_preferences").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(userID, orgID, time.Now()))

		got, err := dir.GetOrganizationPreference(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, orgID, got)
	})

	t.Run("no row", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM user_preferences").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(cols))

		got, err := dir.GetOrganizationPreference(context.Background(), userID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("null organization", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM user_preferences").
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(userID, nil, time.Now()))

		got, err := dir.GetOrganizationPreference(context.Background(), userID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestGetMembership(t *testing.T) {
	cols := []string{"organization_id", "user_id", "role", "is_active", "created_at"}

	t.Run("found", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM organization_members WHERE organization_id").
			WithArgs(orgID, userID).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(orgID, userID, "admin", true, time.Now()))

		m, err := dir.GetMembership(context.Background(), orgID, userID)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, auth.RoleAdmin, m.Role)
		assert.True(t, m.IsActive)
	})

	t.Run("absent", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM organization_members WHERE organization_id").
			WithArgs(orgID, userID).
			WillReturnRows(sqlmock.NewRows(cols))

		m, err := dir.GetMembership(context.Background(), orgID, userID)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("malformed organization id", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		m, err := dir.GetMembership(context.Background(), "acme", userID)
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetProjectOwnership(t *testing.T) {
	cols := []string{
		"id", "organization_id", "name", "status", "owner_user_id",
		"assigned_developer_user_id", "created_at", "updated_at",
	}

	t.Run("assigned", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM projects WHERE id").
			WithArgs(projectID).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(projectID, orgID, "Website", "active", userID, devID, time.Now(), time.Now()))

		o, err := dir.GetProjectOwnership(context.Background(), projectID)
		require.NoError(t, err)
		require.NotNil(t, o)
		assert.Equal(t, projectID, o.ProjectID)
		assert.Equal(t, userID, o.OwnerUserID)
		require.NotNil(t, o.AssignedDeveloperUserID)
		assert.Equal(t, devID, *o.AssignedDeveloperUserID)
	})

	t.Run("absent", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM projects WHERE id").
			WithArgs(projectID).
			WillReturnRows(sqlmock.NewRows(cols))

		o, err := dir.GetProjectOwnership(context.Background(), projectID)
		require.NoError(t, err)
		assert.Nil(t, o)
	})

	t.Run("lookup failure", func(t *testing.T) {
		dir, mock := newTestDirectory(t)
		mock.ExpectQuery("SELECT.*FROM projects WHERE id").
			WithArgs(projectID).
			WillReturnError(errDB)

		_, err := dir.GetProjectOwnership(context.Background(), projectID)
		assert.ErrorIs(t, err, errDB)
	})
}
