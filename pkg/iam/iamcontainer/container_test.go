package iamcontainer_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/iamcontainer"
	"github.com/secufusion/iamplane/pkg/idpx/idpxmemory"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/secufusion/iamplane/pkg/notifx/notifxconsole"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndToEnd provisions a tenant over HTTP, resolves its config by host
// and authenticates a token minted by the new realm.
func TestEndToEnd(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/secufusion/protocol/openid-connect/certs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer jwks.Close()

	cfg := &config.Config{
		IdP:    config.IdPConfig{Provider: config.IdPProviderMemory, BaseURL: jwks.URL},
		Tenant: config.TenantConfig{DomainSuffix: ".motivitylabs.net"},
		Jobx:   config.JobxConfig{Queues: []string{"provisioning"}},
		AuthConfig: config.AuthConfigConfig{
			UserAdminScopes: []string{"ROLE_tenant-admin"},
		},
	}
	idp := idpxmemory.New()
	require.NoError(t, idp.Open(context.Background()))

	c, err := iamcontainer.New(iamcontainer.Deps{
		Cfg:    cfg,
		IdP:    idp,
		Mailer: notifx.NewClient(notifxconsole.New(), "noreply@secufusion.io"),
	})
	require.NoError(t, err)
	c.StartBackgroundServices(context.Background())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := errx.FromError(err)
			return c.Status(e.Status()).JSON(e.ToHTTPResponse())
		},
	})
	c.RegisterRoutes(app)

	call := func(method, target, body, token string) (int, []byte) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, raw
	}

	status, raw := call(http.MethodPost, "/tenants", `{
		"tenantName": "secufusion",
		"domain": "support",
		"email": "e@x.io",
		"phoneNo": "+10000000000",
		"adminFirstName": "A",
		"adminLastName": "B",
		"adminEmail": "a@x.io",
		"adminPhoneNumber": "+10000000001"
	}`, "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	tenantID, _ := created["tenantID"].(string)
	require.NotEmpty(t, tenantID)

	status, raw = call(http.MethodGet, "/tenant-config?host=support.motivitylabs.net", "", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var details map[string]any
	require.NoError(t, json.Unmarshal(raw, &details))
	issuer := jwks.URL + "/realms/secufusion"
	assert.Equal(t, issuer, details["issuer"])

	status, _ = call(http.MethodGet, "/users/custom-response", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	mint := func(roles ...string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":                issuer,
			"sub":                "kc-user-1",
			"preferred_username": "adaa7",
			"email":              "a@x.io",
			"exp":                time.Now().Add(time.Hour).Unix(),
			"realm_access":       map[string]any{"roles": roles},
		})
		token.Header["kid"] = "k1"
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}
	signed := mint()

	status, raw = call(http.MethodGet, "/users/custom-response", "", signed)
	require.Equal(t, http.StatusOK, status, string(raw))
	var echo map[string]any
	require.NoError(t, json.Unmarshal(raw, &echo))
	assert.Equal(t, "kc-user-1", echo["userId"])
	assert.Equal(t, "Login successful", echo["message"])

	newUser := `{
		"userName": "jdoe1",
		"email": "j@x.io",
		"phoneNumber": "+10000000002",
		"firstName": "J",
		"lastName": "Doe"
	}`
	status, _ = call(http.MethodPost, "/users/"+tenantID, newUser, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(http.MethodPost, "/users/"+tenantID, newUser, signed)
	assert.Equal(t, http.StatusForbidden, status)

	status, raw = call(http.MethodPost, "/users/"+tenantID, newUser, mint("tenant-admin"))
	require.Equal(t, http.StatusOK, status, string(raw))
	var userResp map[string]any
	require.NoError(t, json.Unmarshal(raw, &userResp))
	assert.Equal(t, "jdoe1", userResp["userName"])
	assert.Equal(t, "ACTIVE", userResp["status"])

	realm, ok := idp.Realm("secufusion")
	require.True(t, ok)
	assert.Len(t, realm.Users, 2)

	status, raw = call(http.MethodGet, "/users", "", "")
	require.Equal(t, http.StatusOK, status, string(raw))
	var all []map[string]any
	require.NoError(t, json.Unmarshal(raw, &all))
	assert.Len(t, all, 2)
}
