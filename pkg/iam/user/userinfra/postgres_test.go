package userinfra_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/iam/user/userinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (user.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return userinfra.NewPostgresUserRepository(sqlx.NewDb(db, "postgres")), mock
}

var userCols = []string{
	"user_id", "tenant_id", "user_name", "email", "phone_no", "first_name", "last_name",
	"status", "keycloak_user_id", "default_user", "created_at", "updated_at",
}

func TestCreateMapsDuplicates(t *testing.T) {
	cases := map[string]*errx.ErrorCode{
		"users_email_key":     user.CodeEmailExists,
		"users_phone_no_key":  user.CodePhoneExists,
		"users_user_name_key": user.CodeUserNameExists,
	}
	for constraint, code := range cases {
		t.Run(constraint, func(t *testing.T) {
			repo, mock := newRepo(t)
			mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: constraint})

			err := repo.Create(context.Background(), &user.User{ID: "u-1", UserName: "alov7"})
			assert.True(t, errx.HasCode(err, code), "got %v", err)
		})
	}
}

func TestFindDefaultByTenant(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE tenant_id = $1 AND default_user")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "t-1", "alov7", "a@x.io", "+1", "A", "B", "CREATING", "", true, now, now))

	u, err := repo.FindDefaultByTenant(context.Background(), "t-1")

	require.NoError(t, err)
	assert.True(t, u.DefaultUser)
	assert.False(t, u.IsLinked())
	assert.Equal(t, user.StatusCreating, u.Status)
}

func TestLinkRemote(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec("UPDATE users SET keycloak_user_id").
		WithArgs("kc-9", "ACTIVE", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET keycloak_user_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.LinkRemote(ctx, "u-1", "kc-9", user.StatusActive))
	assert.True(t, errx.HasCode(repo.LinkRemote(ctx, "u-2", "kc-9", user.StatusActive), user.CodeUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByUserName(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE user_name = $1)")).
		WithArgs("alov7").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.ExistsBy(context.Background(), user.FieldUserName, "alov7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	u := &user.User{ID: "u-1", UserName: "alov7", Email: "a@x.io", PhoneNo: "+1", FirstName: "Al"}

	t.Run("rewrites profile", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
			WithArgs("alov7", "a@x.io", "+1", "Al", "", sqlmock.AnyArg(), "u-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, u))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectExec("UPDATE users SET").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

		assert.True(t, errx.HasCode(repo.Update(ctx, u), user.CodeEmailExists))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.True(t, errx.HasCode(repo.Update(ctx, u), user.CodeUserNotFound))
	})
}

func TestDelete(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE user_id = $1")).
		WithArgs("u-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, "u-1"))
	assert.True(t, errx.HasCode(repo.Delete(ctx, "u-2"), user.CodeUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at, user_name")).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "t-1", "alov7", "a@x.io", "+1", "A", "B", "ACTIVE", "kc-1", true, now, now).
			AddRow("u-2", "t-2", "bob22", "b@x.io", "+2", "B", "C", "ACTIVE", "kc-2", true, now, now))

	users, err := repo.List(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob22", users[1].UserName)
	assert.True(t, users[0].IsLinked())
}
