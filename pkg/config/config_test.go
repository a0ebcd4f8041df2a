package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDomainSuffix(t *testing.T) {
	t.Setenv("TENANT_DOMAIN_SUFFIX", "")
	t.Setenv("IDP_PROVIDER", "memory")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_DOMAIN_SUFFIX")
}

func TestLoadRejectsSuffixWithoutDot(t *testing.T) {
	t.Setenv("TENANT_DOMAIN_SUFFIX", "motivitylabs.net")
	t.Setenv("IDP_PROVIDER", "memory")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadKeycloakNeedsBaseURL(t *testing.T) {
	t.Setenv("TENANT_DOMAIN_SUFFIX", ".motivitylabs.net")
	t.Setenv("IDP_PROVIDER", "keycloak")
	t.Setenv("IDP_BASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TENANT_DOMAIN_SUFFIX", ".Motivitylabs.net")
	t.Setenv("IDP_PROVIDER", "keycloak")
	t.Setenv("IDP_BASE_URL", "https://idp.example/")
	t.Setenv("JOBX_QUEUES", "provisioning, mail ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".motivitylabs.net", cfg.Tenant.DomainSuffix)
	assert.Equal(t, "https://idp.example", cfg.IdP.BaseURL)
	assert.Equal(t, []string{"provisioning", "mail"}, cfg.Jobx.Queues)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=iam sslmode=disable", cfg.Database.DSN())
}
