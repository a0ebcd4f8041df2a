package userapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantinfra"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/iam/user/userapi"
	"github.com/secufusion/iamplane/pkg/iam/user/userinfra"
	"github.com/secufusion/iamplane/pkg/iam/user/usersrv"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/idpx/idpxmemory"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth stands in for the bearer middleware: a "Bearer good" header
// authenticates as a fixed subject.
func fakeAuth(c *fiber.Ctx) error {
	if c.Get("Authorization") != "Bearer good" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token", "status": 401})
	}
	c.Locals("auth", &kernel.AuthContext{
		UserID:   "sub-1",
		Username: "adaa7",
		Email:    "a@x.io",
		Token:    "good",
	})
	return c.Next()
}

func newApp() *fiber.App {
	app, _ := newAppWithIdP()
	return app
}

// newAppWithIdP wires the full create path against an in-memory realm.
// Writes are guarded by a header check standing in for RequireScope.
func newAppWithIdP() (*fiber.App, *idpxmemory.Provider) {
	ctx := context.Background()
	tenants := tenantinfra.NewMemoryTenantRepository()
	tenants.Put(&tenant.Tenant{ID: "t-1", Name: "acme", RealmName: "acme", Status: tenant.StatusActive})
	idp := idpxmemory.New()
	_ = idp.Open(ctx)
	_ = idp.CreateRealm(ctx, idpx.NewRealm("acme", idpx.SMTP{}))

	repo := userinfra.NewMemoryUserRepository()
	repo.Put(&user.User{
		ID:          "u-1",
		TenantID:    "t-1",
		UserName:    "adaa7",
		Email:       "a@x.io",
		PhoneNo:     "+10000000001",
		Status:      user.StatusActive,
		DefaultUser: true,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := errx.FromError(err)
			return c.Status(e.Status()).JSON(e.ToHTTPResponse())
		},
	})
	svc := usersrv.NewUserService(usersrv.Deps{Users: repo, Tenants: tenants, IdP: idp})
	userapi.NewUserHandlers(svc).RegisterRoutes(app, fakeAuth, adminOnly)
	return app, idp
}

func adminOnly(c *fiber.Ctx) error {
	if c.Get("X-Role") != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient scope", "status": 403})
	}
	return c.Next()
}

func send(t *testing.T, app *fiber.App, method, target string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func do(t *testing.T, app *fiber.App, target, token string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestCheckEndpoint(t *testing.T) {
	app := newApp()

	cases := map[string]string{
		"/users/check?userName=adaa7":             "Username already exists.",
		"/users/check?userName=fresh1":            "Username is available.",
		"/users/check?phoneNumber=%2B10000000001": "Mobile Number already exists.",
		"/users/check?email=new@x.io":             "Email is available.",
	}
	for target, want := range cases {
		status, raw := do(t, app, target, "")
		require.Equal(t, http.StatusOK, status, target)
		assert.Equal(t, want, string(raw), target)
	}

	status, _ := do(t, app, "/users/check", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCustomResponseRequiresAuth(t *testing.T) {
	app := newApp()

	status, _ := do(t, app, "/users/custom-response", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw := do(t, app, "/users/custom-response", "good")
	require.Equal(t, http.StatusOK, status)
	var got user.LoginResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, user.LoginResponse{
		UserID:      "sub-1",
		Username:    "adaa7",
		Email:       "a@x.io",
		AccessToken: "good",
		Message:     "Login successful",
	}, got)
}

func TestListByTenantEndpoint(t *testing.T) {
	app := newApp()

	status, raw := do(t, app, "/users/tenant/t-1", "")
	require.Equal(t, http.StatusOK, status)
	var users []user.Response
	require.NoError(t, json.Unmarshal(raw, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "adaa7", users[0].UserName)
	assert.True(t, users[0].DefaultUser)
}

func TestUserCRUDEndpoints(t *testing.T) {
	app, idp := newAppWithIdP()
	payload := user.Request{UserName: "JDoe1", Email: "j@x.io", PhoneNumber: "+10000000002", FirstName: "J"}

	status, raw := send(t, app, http.MethodPost, "/users/t-1", payload)
	require.Equal(t, http.StatusOK, status, string(raw))
	var created user.Response
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "jdoe1", created.UserName)
	assert.Equal(t, user.StatusActive, created.Status)
	assert.Equal(t, 1, idp.CountCalls(idpx.OpAssignRealmAdmin))

	status, raw = send(t, app, http.MethodPost, "/users/t-1", payload)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), "EMAIL_EXISTS")

	status, raw = send(t, app, http.MethodGet, "/users/"+created.UserID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	var got user.Response
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, created, got)

	payload.FirstName = "Jane"
	status, raw = send(t, app, http.MethodPut, "/users/"+created.UserID.String(), payload)
	require.Equal(t, http.StatusOK, status, string(raw))
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Jane", got.FirstName)

	status, raw = send(t, app, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, status)
	var all []user.Response
	require.NoError(t, json.Unmarshal(raw, &all))
	assert.Len(t, all, 2)

	status, raw = send(t, app, http.MethodDelete, "/users/"+created.UserID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	var deleted user.DeleteResponse
	require.NoError(t, json.Unmarshal(raw, &deleted))
	assert.Equal(t, user.DeleteResponse{Deleted: true, UserID: created.UserID}, deleted)

	status, raw = send(t, app, http.MethodGet, "/users/"+created.UserID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(raw), "USER_NOT_FOUND")
}

func TestUserWritesAreGuarded(t *testing.T) {
	app, idp := newAppWithIdP()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/users/t-1", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, method)
	}
	assert.Zero(t, idp.CountCalls(idpx.OpFindUser))

	status, _ := do(t, app, "/users/u-1", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateUserMalformedBody(t *testing.T) {
	app, _ := newAppWithIdP()

	req := httptest.NewRequest(http.MethodPost, "/users/t-1", bytes.NewReader([]byte(`{"userName":`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
