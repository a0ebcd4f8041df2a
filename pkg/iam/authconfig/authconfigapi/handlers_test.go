package authconfigapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfigapi"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfiginfra"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfigsrv"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantConfigEndpoint(t *testing.T) {
	tenants := tenantinfra.NewMemoryTenantRepository()
	configs := authconfiginfra.NewMemoryConfigRepository()
	tenants.Put(&tenant.Tenant{
		ID:        "t-1",
		Name:      "acme",
		RealmName: "acme",
		Domain:    "support.motivitylabs.net",
		Status:    tenant.StatusActive,
	})
	configs.Put(authconfig.NewKeycloakConfig("t-1", "https://idp.example", "acme", "", ""))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := errx.FromError(err)
			return c.Status(e.Status()).JSON(e.ToHTTPResponse())
		},
	})
	authconfigapi.NewAuthConfigHandlers(authconfigsrv.NewAuthConfigService(tenants, configs, nil)).RegisterRoutes(app)

	get := func(target string) (int, []byte) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, raw
	}

	status, raw := get("/tenant-config?host=support.motivitylabs.net")
	require.Equal(t, http.StatusOK, status, string(raw))
	var details map[string]any
	require.NoError(t, json.Unmarshal(raw, &details))
	assert.Equal(t, "acme", details["realm"])
	assert.Equal(t, "https://idp.example/realms/acme", details["issuer"])
	assert.Equal(t, "ACTIVE", details["status"])

	status, raw = get("/tenant-config?host=unknown.example")
	assert.Equal(t, http.StatusNotFound, status)
	var body errx.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "RESOURCE_NOT_FOUND", body.ErrorCode)
	assert.Equal(t, 4040, body.ErrorNumber)

	status, _ = get("/tenant-config")
	assert.Equal(t, http.StatusBadRequest, status)
}
