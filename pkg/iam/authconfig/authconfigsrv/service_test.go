package authconfigsrv_test

import (
	"context"
	"sync"
	"testing"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfiginfra"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfigsrv"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*authconfig.AuthDetails
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*authconfig.AuthDetails{}}
}

func (c *mapCache) Get(_ context.Context, host string) (*authconfig.AuthDetails, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[host]
	if ok {
		c.hits++
	}
	return d, ok
}

func (c *mapCache) Set(_ context.Context, host string, d *authconfig.AuthDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[host] = d
}

func (c *mapCache) Evict(_ context.Context, hosts ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hosts {
		delete(c.entries, h)
	}
}

func seeded(t *testing.T) (*tenantinfra.MemoryTenantRepository, *authconfiginfra.MemoryConfigRepository, *tenant.Tenant) {
	t.Helper()
	tenants := tenantinfra.NewMemoryTenantRepository()
	configs := authconfiginfra.NewMemoryConfigRepository()

	acme := &tenant.Tenant{
		ID:         "t-1",
		Name:       "acme",
		RealmName:  "acme",
		Domain:     "support.motivitylabs.net",
		TenantType: "Enterprise",
		Status:     tenant.StatusActive,
	}
	tenants.Put(acme)
	configs.Put(authconfig.NewKeycloakConfig(acme.ID, "https://idp.example/", "acme", "https://support.motivitylabs.net", ""))
	return tenants, configs, acme
}

func TestResolveByDomainAndName(t *testing.T) {
	tenants, configs, _ := seeded(t)
	svc := authconfigsrv.NewAuthConfigService(tenants, configs, nil)
	ctx := context.Background()

	want := &authconfig.AuthDetails{
		TenantID:    "t-1",
		TenantKey:   "acme",
		Name:        "acme",
		TenantType:  "Enterprise",
		KeycloakURL: "https://idp.example",
		Realm:       "acme",
		ClientID:    "acme",
		Issuer:      "https://idp.example/realms/acme",
		JWKURI:      "https://idp.example/realms/acme/protocol/openid-connect/certs",
		TokenURI:    "https://idp.example/realms/acme/protocol/openid-connect/token",
		Domain:      "support.motivitylabs.net",
		Status:      "ACTIVE",
	}

	got, err := svc.Resolve(ctx, "  Support.MotivityLabs.net ")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = svc.Resolve(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = svc.Resolve(ctx, "https://support.motivitylabs.net:443/dashboard")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveMisses(t *testing.T) {
	tenants, configs, acme := seeded(t)
	svc := authconfigsrv.NewAuthConfigService(tenants, configs, nil)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "   ")
	assert.True(t, errx.HasCode(err, authconfig.CodeHostRequired))

	_, err = svc.Resolve(ctx, "https:///")
	assert.True(t, errx.HasCode(err, authconfig.CodeHostRequired))

	_, err = svc.Resolve(ctx, "nobody.example")
	assert.True(t, errx.HasCode(err, errx.CodeResourceNotFound))

	require.NoError(t, configs.DeleteByTenant(ctx, acme.ID))
	_, err = svc.Resolve(ctx, "acme")
	assert.True(t, errx.HasCode(err, errx.CodeResourceNotFound))
}

func TestResolveReadsThroughCache(t *testing.T) {
	tenants, configs, acme := seeded(t)
	cache := newMapCache()
	svc := authconfigsrv.NewAuthConfigService(tenants, configs, cache)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, cache.hits)

	require.NoError(t, configs.DeleteByTenant(ctx, acme.ID))
	second, err := svc.Resolve(ctx, "acme")
	require.NoError(t, err, "served from cache")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.hits)

	svc.Invalidate(ctx, acme)
	_, err = svc.Resolve(ctx, "acme")
	assert.True(t, errx.HasCode(err, errx.CodeResourceNotFound))
}
