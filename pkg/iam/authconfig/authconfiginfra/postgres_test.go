package authconfiginfra_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfiginfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateURLs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := authconfiginfra.NewPostgresConfigRepository(sqlx.NewDb(db, "postgres"))

	query := regexp.QuoteMeta("UPDATE auth_provider_configs SET redirect_uri = $1, login_url = $2 WHERE tenant_id = $3")
	mock.ExpectExec(query).
		WithArgs("https://help.motivitylabs.net/*", "https://kc/auth", "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs("https://x/*", "", "t-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.UpdateURLs(ctx, "t-1", "https://help.motivitylabs.net/*", "https://kc/auth"))
	err = repo.UpdateURLs(ctx, "t-2", "https://x/*", "")
	assert.True(t, errx.HasCode(err, authconfig.CodeConfigNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
