package tenantinfra_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantinfra"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*tenantinfra.PostgresTenantRepository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "postgres")
	return tenantinfra.NewPostgresTenantRepository(sdb), sdb, mock
}

var tenantCols = []string{
	"tenant_id", "tenant_name", "realm_name", "domain", "email", "region", "phone_no",
	"tenant_type", "industry", "billing_cycle_type", "status", "login_url", "parent_tenant_id",
	"created_by", "updated_by", "created_at", "updated_at",
}

var addressCols = []string{"id", "tenant_id", "kind", "address_line1", "address_line2", "city", "state", "country", "postal_code"}

func tenantRow(id, name string, status tenant.Status, parent any) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(tenantCols).AddRow(
		id, name, name, "support.motivitylabs.net", "e@x.io", "us", "+10000000000",
		"Enterprise", "security", "Monthly", string(status), "", parent,
		"", "", now, now,
	)
}

func TestCreateInsertsTenantAndAddresses(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO addresses").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &tenant.Tenant{
		ID:             "t-1",
		Name:           "secufusion",
		RealmName:      "secufusion",
		Status:         tenant.StatusCreating,
		BillingAddress: &tenant.Address{City: "Austin"},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsUniqueViolationByConstraint(t *testing.T) {
	cases := map[string]*errx.ErrorCode{
		"tenants_tenant_name_key": tenant.CodeNameExists,
		"tenants_domain_key":      tenant.CodeDomainExists,
		"tenants_email_key":       tenant.CodeEmailExists,
		"tenants_phone_no_key":    tenant.CodePhoneExists,
	}
	for constraint, code := range cases {
		t.Run(constraint, func(t *testing.T) {
			repo, _, mock := newRepo(t)
			mock.ExpectExec("INSERT INTO tenants").
				WillReturnError(&pq.Error{Code: "23505", Constraint: constraint})

			err := repo.Create(context.Background(), &tenant.Tenant{ID: "t-1", Name: "acme"})

			require.Error(t, err)
			assert.True(t, errx.HasCode(err, code), "got %v", err)
		})
	}
}

func TestFindByNameLoadsAddresses(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants WHERE tenant_name = $1")).
		WithArgs("secufusion").
		WillReturnRows(tenantRow("t-1", "secufusion", tenant.StatusRealmCreated, "root"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM addresses WHERE tenant_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(addressCols).
			AddRow(1, "t-1", "billing", "1 Main", "", "Austin", "TX", "US", "73301").
			AddRow(2, "t-1", "permanent", "2 Main", "", "Dallas", "TX", "US", "75001"))

	got, err := repo.FindByName(context.Background(), "secufusion")

	require.NoError(t, err)
	assert.Equal(t, kernel.TenantID("t-1"), got.ID)
	assert.Equal(t, tenant.StatusRealmCreated, got.Status)
	require.NotNil(t, got.ParentTenantID)
	assert.Equal(t, kernel.TenantID("root"), *got.ParentTenantID)
	assert.Equal(t, "Austin", got.BillingAddress.City)
	assert.Equal(t, "Dallas", got.PermanentAddress.City)
	assert.Nil(t, got.TemporaryAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectQuery("FROM tenants WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows(tenantCols))

	_, err := repo.FindByID(context.Background(), "missing")

	assert.True(t, errx.HasCode(err, tenant.CodeTenantNotFound))
}

func TestExistsBy(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM tenants WHERE domain = $1)")).
		WithArgs("support.motivitylabs.net").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsBy(context.Background(), tenant.FieldDomain, "support.motivitylabs.net")

	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.ExistsBy(context.Background(), tenant.UniqueField("status"), "ACTIVE")
	assert.Error(t, err)
}

func TestAdvanceStatusIsGuarded(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tenants SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND status = $4")).
		WithArgs("CLIENT_CREATED", sqlmock.AnyArg(), "t-1", "REALM_CREATED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tenants SET status").
		WithArgs("CLIENT_CREATED", sqlmock.AnyArg(), "t-1", "REALM_CREATED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.AdvanceStatus(ctx, "t-1", tenant.StatusRealmCreated, tenant.StatusClientCreated))

	err := repo.AdvanceStatus(ctx, "t-1", tenant.StatusRealmCreated, tenant.StatusClientCreated)
	assert.True(t, errx.HasCode(err, tenant.CodeStatusConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesAddressesFirst(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectExec("DELETE FROM addresses").WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM tenants").WithArgs("t-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM addresses").WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM tenants").WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, "t-1"))
	assert.True(t, errx.HasCode(repo.Delete(ctx, "gone"), tenant.CodeTenantNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWritesJoinAmbientTransaction(t *testing.T) {
	repo, db, mock := newRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tenants SET login_url").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tenants SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := txx.NewSQLRunner(db).WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.SetLoginURL(ctx, "t-1", "https://idp.example/realms/x"); err != nil {
			return err
		}
		return repo.AdvanceStatus(ctx, "t-1", tenant.StatusUserCreated, tenant.StatusActive)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTypes(t *testing.T) {
	repo, _, mock := newRepo(t)
	mock.ExpectQuery("FROM tenant_types").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Enterprise").AddRow(2, "SMB"))

	types, err := repo.ListTypes(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []tenant.TenantType{{ID: 1, Name: "Enterprise"}, {ID: 2, Name: "SMB"}}, types)
}
