package rbacinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/secufusion/iamplane/pkg/iam/rbac"
	"github.com/secufusion/iamplane/pkg/iam/rbac/rbacinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (rbac.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return rbacinfra.NewPostgresRBACRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestEnsureTenantAdminCreatesRoleAndGroup(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("FROM roles WHERE tenant_id").
		WithArgs("t-1", "acme_Admin").
		WillReturnRows(sqlmock.NewRows([]string{"role_id"}))
	mock.ExpectExec("INSERT INTO roles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM groups WHERE tenant_id").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}))
	mock.ExpectExec("INSERT INTO groups").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO group_role_map").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_group_map").
		WithArgs(sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	group, err := rbac.EnsureTenantAdmin(context.Background(), repo, "t-1", "acme", "u-1")

	require.NoError(t, err)
	assert.Equal(t, "acme_Admin", group.Name)
	assert.True(t, group.IsAdmin)
	assert.True(t, group.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTenantAdminReusesExisting(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM roles WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "tenant_id", "name", "description", "is_default", "is_super_role", "created_at"}).
			AddRow("r-1", "t-1", "acme_Admin", "Administrator role", true, true, now))
	mock.ExpectQuery("FROM groups WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "tenant_id", "name", "description", "is_admin", "is_default", "active", "created_at"}).
			AddRow("g-1", "t-1", "acme_Admin", "", true, true, true, now))
	mock.ExpectExec("INSERT INTO group_role_map").
		WithArgs("g-1", "r-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO user_group_map").
		WithArgs("g-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	group, err := rbac.EnsureTenantAdmin(context.Background(), repo, "t-1", "acme", "u-1")

	require.NoError(t, err)
	assert.Equal(t, "g-1", group.ID.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
