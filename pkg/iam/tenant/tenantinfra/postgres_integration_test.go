//go:build integration

package tenantinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantinfra"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/testutil"
	"github.com/secufusion/iamplane/pkg/txx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshTenant() *tenant.Tenant {
	suffix := uuid.NewString()[:8]
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &tenant.Tenant{
		ID:               kernel.NewTenantID(),
		Name:             "acme" + suffix,
		RealmName:        "acme" + suffix,
		Domain:           suffix + ".acme.example",
		Email:            "ops@" + suffix + ".acme.example",
		PhoneNo:          "+1555" + suffix,
		TenantType:       "Enterprise",
		BillingCycleType: "Monthly",
		Status:           tenant.StatusCreatedLocal,
		BillingAddress:   &tenant.Address{AddressLine1: "1 Main St", City: "Austin", Country: "US"},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestPostgresTenantLifecycle(t *testing.T) {
	db := testutil.StartPostgres(t)
	repo := tenantinfra.NewPostgresTenantRepository(db)
	ctx := t.Context()

	tn := freshTenant()
	require.NoError(t, repo.Create(ctx, tn))

	got, err := repo.FindByDomain(ctx, tn.Domain)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, got.ID)
	require.NotNil(t, got.BillingAddress)
	assert.Equal(t, "Austin", got.BillingAddress.City)
	assert.Nil(t, got.ParentTenantID)

	exists, err := repo.ExistsBy(ctx, tenant.FieldName, tn.Name)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.AdvanceStatus(ctx, tn.ID, tenant.StatusCreatedLocal, tenant.StatusRealmCreated))
	err = repo.AdvanceStatus(ctx, tn.ID, tenant.StatusCreatedLocal, tenant.StatusRealmCreated)
	assert.True(t, errx.HasCode(err, tenant.CodeStatusConflict))

	require.NoError(t, repo.Delete(ctx, tn.ID))
	_, err = repo.FindByID(ctx, tn.ID)
	assert.True(t, errx.HasCode(err, tenant.CodeTenantNotFound))
}

func TestPostgresTenantDuplicateDomain(t *testing.T) {
	db := testutil.StartPostgres(t)
	repo := tenantinfra.NewPostgresTenantRepository(db)

	first := freshTenant()
	require.NoError(t, repo.Create(t.Context(), first))

	second := freshTenant()
	second.Domain = first.Domain
	err := repo.Create(t.Context(), second)
	assert.True(t, errx.HasCode(err, tenant.CodeDomainExists))
}

func TestPostgresTenantRollbackDiscardsSkeleton(t *testing.T) {
	db := testutil.StartPostgres(t)
	repo := tenantinfra.NewPostgresTenantRepository(db)
	runner := txx.NewSQLRunner(db)

	tn := freshTenant()
	err := runner.WithinTx(t.Context(), func(ctx context.Context) error {
		if err := repo.Create(ctx, tn); err != nil {
			return err
		}
		return tenant.ErrRealmExists()
	})
	require.Error(t, err)

	_, err = repo.FindByID(t.Context(), tn.ID)
	assert.True(t, errx.HasCode(err, tenant.CodeTenantNotFound))
}
