package auth_test

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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam"
	"github.com/secufusion/iamplane/pkg/iam/auth"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfiginfra"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fake realm
// ============================================================================

type signingKey struct {
	kid string
	key *rsa.PrivateKey
}

func newKey(t *testing.T, kid string) signingKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signingKey{kid: kid, key: key}
}

func (k signingKey) jwk() map[string]string {
	return map[string]string{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": k.kid,
		"n":   base64.RawURLEncoding.EncodeToString(k.key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.key.E)).Bytes()),
	}
}

// realmServer publishes the key set of every realm under /realms/{name}/certs.
type realmServer struct {
	*httptest.Server
	mu      sync.Mutex
	keys    map[string][]signingKey
	down    map[string]bool
	fetches atomic.Int32
}

func newRealmServer(t *testing.T) *realmServer {
	t.Helper()
	rs := &realmServer{keys: map[string][]signingKey{}, down: map[string]bool{}}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.fetches.Add(1)
		rs.mu.Lock()
		defer rs.mu.Unlock()
		for realm, keys := range rs.keys {
			if r.URL.Path != "/realms/"+realm+"/protocol/openid-connect/certs" {
				continue
			}
			if rs.down[realm] {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			set := []map[string]string{}
			for _, k := range keys {
				set = append(set, k.jwk())
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"keys": set})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *realmServer) publish(realm string, keys ...signingKey) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.keys[realm] = keys
}

func (rs *realmServer) issuer(realm string) string {
	return rs.URL + "/realms/" + realm
}

func (rs *realmServer) config(tenantID, realm string) *authconfig.Config {
	cfg := authconfig.NewKeycloakConfig(kernel.TenantID(tenantID), rs.URL, realm, "", "")
	cfg.JWKURI = ""
	return cfg
}

func sign(t *testing.T, k signingKey, issuer string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":                issuer,
		"sub":                "user-1",
		"preferred_username": "adaa7",
		"email":              "a@x.io",
		"exp":                time.Now().Add(ttl).Unix(),
		"iat":                time.Now().Add(-time.Minute).Unix(),
		"realm_access":       map[string]any{"roles": []string{"admin", "offline_access"}},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = k.kid
	raw, err := token.SignedString(k.key)
	require.NoError(t, err)
	return raw
}

func payloadToken(payload string) string {
	return "eyJhbGciOiJSUzI1NiJ9." + payload + ".c2ln"
}

// ============================================================================
// Issuer extraction
// ============================================================================

func TestIssuerOf(t *testing.T) {
	raw := `{"iss":"https://idp.example/realms/a"}`
	unpadded := base64.RawURLEncoding.EncodeToString([]byte(raw))
	padded := base64.URLEncoding.EncodeToString([]byte(raw))
	for !strings.HasSuffix(padded, "=") {
		raw += " "
		padded = base64.URLEncoding.EncodeToString([]byte(raw))
	}

	iss, ok := auth.IssuerOf(payloadToken(unpadded))
	require.True(t, ok)
	assert.Equal(t, "https://idp.example/realms/a", iss)

	iss, ok = auth.IssuerOf(payloadToken(padded))
	require.True(t, ok)
	assert.Equal(t, "https://idp.example/realms/a", iss)

	declined := map[string]string{
		"empty":        "",
		"two segments": "a.b",
		"bad base64":   payloadToken("!!!"),
		"not json":     payloadToken(base64.RawURLEncoding.EncodeToString([]byte("nope"))),
		"no iss":       payloadToken(base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`))),
		"numeric iss":  payloadToken(base64.RawURLEncoding.EncodeToString([]byte(`{"iss":42}`))),
	}
	for name, token := range declined {
		_, ok := auth.IssuerOf(token)
		assert.False(t, ok, name)
	}
}

// ============================================================================
// Dispatcher
// ============================================================================

func TestDispatcherRoutesByIssuer(t *testing.T) {
	rs := newRealmServer(t)
	keyA, keyB := newKey(t, "a1"), newKey(t, "b1")
	rs.publish("alpha", keyA)
	rs.publish("beta", keyB)

	configs := authconfiginfra.NewMemoryConfigRepository()
	configs.Put(rs.config("t-a", "alpha"))
	configs.Put(rs.config("t-b", "beta"))

	d := auth.NewDispatcher(configs, nil)
	require.NoError(t, d.Reload(context.Background()))
	assert.ElementsMatch(t, []string{rs.issuer("alpha"), rs.issuer("beta")}, d.Issuers())

	v, ok := d.Resolve(sign(t, keyA, rs.issuer("alpha"), time.Hour))
	require.True(t, ok)
	assert.Equal(t, rs.issuer("alpha"), v.Issuer())

	v, ok = d.Resolve(sign(t, keyB, rs.issuer("beta"), time.Hour))
	require.True(t, ok)
	assert.Equal(t, rs.issuer("beta"), v.Issuer())

	_, ok = d.Resolve(sign(t, keyA, rs.issuer("gamma"), time.Hour))
	assert.False(t, ok)
	_, ok = d.Resolve("not-a-token")
	assert.False(t, ok)
}

func TestReloadSkipsUnbuildableVerifiers(t *testing.T) {
	rs := newRealmServer(t)
	rs.publish("alpha", newKey(t, "a1"))
	rs.publish("broken", newKey(t, "x1"))
	rs.down["broken"] = true

	configs := authconfiginfra.NewMemoryConfigRepository()
	configs.Put(rs.config("t-a", "alpha"))
	configs.Put(rs.config("t-x", "broken"))

	d := auth.NewDispatcher(configs, nil)
	require.NoError(t, d.Reload(context.Background()))
	assert.Equal(t, []string{rs.issuer("alpha")}, d.Issuers())
}

func TestRegisterAndUnregister(t *testing.T) {
	rs := newRealmServer(t)
	key := newKey(t, "a1")
	rs.publish("alpha", key)

	d := auth.NewDispatcher(authconfiginfra.NewMemoryConfigRepository(), nil)
	token := sign(t, key, rs.issuer("alpha"), time.Hour)

	_, ok := d.Resolve(token)
	assert.False(t, ok)

	require.NoError(t, d.Register(context.Background(), rs.config("t-a", "alpha")))
	_, ok = d.Resolve(token)
	assert.True(t, ok)

	d.Unregister(rs.issuer("alpha"))
	_, ok = d.Resolve(token)
	assert.False(t, ok)
}

// ============================================================================
// Verifier
// ============================================================================

func TestVerifierMapsClaims(t *testing.T) {
	rs := newRealmServer(t)
	key := newKey(t, "a1")
	rs.publish("alpha", key)

	v, err := auth.NewVerifier(context.Background(), rs.config("t-a", "alpha"), nil)
	require.NoError(t, err)
	token := sign(t, key, rs.issuer("alpha"), time.Hour)

	ac, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, kernel.UserID("user-1"), ac.UserID)
	assert.Equal(t, kernel.TenantID("t-a"), ac.TenantID)
	assert.Equal(t, "alpha", ac.Realm)
	assert.Equal(t, "adaa7", ac.Username)
	assert.Equal(t, "a@x.io", ac.Email)
	assert.Equal(t, []string{"ROLE_admin", "ROLE_offline_access"}, ac.Scopes)
	assert.Equal(t, token, ac.Token)
}

func TestVerifierRejectsBadTokens(t *testing.T) {
	rs := newRealmServer(t)
	key := newKey(t, "a1")
	rs.publish("alpha", key)

	d := auth.NewDispatcher(authconfiginfra.NewMemoryConfigRepository(), nil)
	require.NoError(t, d.Register(context.Background(), rs.config("t-a", "alpha")))
	v, ok := d.Resolve(sign(t, key, rs.issuer("alpha"), time.Hour))
	require.True(t, ok)

	_, err := v.Verify(context.Background(), sign(t, key, rs.issuer("alpha"), -time.Hour))
	assert.True(t, errx.HasCode(err, iam.CodeTokenExpired))

	_, err = v.Verify(context.Background(), sign(t, key, rs.issuer("other"), time.Hour))
	assert.True(t, errx.HasCode(err, iam.CodeInvalidToken))

	forged := newKey(t, "a1")
	_, err = v.Verify(context.Background(), sign(t, forged, rs.issuer("alpha"), time.Hour))
	assert.True(t, errx.HasCode(err, iam.CodeInvalidToken))
}

func TestVerifierRefetchesOnUnknownKeyID(t *testing.T) {
	rs := newRealmServer(t)
	old, rotated := newKey(t, "k1"), newKey(t, "k2")
	rs.publish("alpha", old)

	d := auth.NewDispatcher(authconfiginfra.NewMemoryConfigRepository(), nil)
	require.NoError(t, d.Register(context.Background(), rs.config("t-a", "alpha")))
	assert.Equal(t, int32(1), rs.fetches.Load())

	rs.publish("alpha", old, rotated)
	token := sign(t, rotated, rs.issuer("alpha"), time.Hour)
	v, ok := d.Resolve(token)
	require.True(t, ok)

	_, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int32(2), rs.fetches.Load())

	unknown := newKey(t, "k9")
	_, err = v.Verify(context.Background(), sign(t, unknown, rs.issuer("alpha"), time.Hour))
	assert.Error(t, err)
	assert.Equal(t, int32(2), rs.fetches.Load(), "refetch is rate limited after a rotation")
}

func TestVerifierForgedKeyIDsCauseOneFetch(t *testing.T) {
	rs := newRealmServer(t)
	rs.publish("alpha", newKey(t, "a1"))

	configs := authconfiginfra.NewMemoryConfigRepository()
	configs.Put(rs.config("t-a", "alpha"))
	d := auth.NewDispatcher(configs, nil)
	require.NoError(t, d.Reload(context.Background()))
	app := newProtectedApp(d)
	require.Equal(t, int32(1), rs.fetches.Load())

	forged := sign(t, newKey(t, "nope"), rs.issuer("alpha"), time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+forged)
			resp, err := app.Test(req, -1)
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, rs.fetches.Load(), int32(2))
}

// ============================================================================
// Middleware
// ============================================================================

func newProtectedApp(d *auth.Dispatcher) *fiber.App {
	mw := auth.NewAuthMiddleware(d)
	app := fiber.New()
	app.Use(mw.Authenticate())
	app.Get("/open", func(c *fiber.Ctx) error {
		_, ok := auth.FromContext(c)
		return c.JSON(fiber.Map{"authenticated": ok})
	})
	app.Get("/me", mw.RequireAuth(), func(c *fiber.Ctx) error {
		ac, _ := auth.FromContext(c)
		return c.JSON(ac)
	})
	app.Get("/admin", mw.RequireScope("ROLE_admin"), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"scope": "ROLE_admin"})
	})
	app.Get("/auditor", mw.RequireScope("ROLE_auditor"), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"scope": "ROLE_auditor"})
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func TestMiddleware(t *testing.T) {
	rs := newRealmServer(t)
	key := newKey(t, "a1")
	rs.publish("alpha", key)

	configs := authconfiginfra.NewMemoryConfigRepository()
	configs.Put(rs.config("t-a", "alpha"))
	d := auth.NewDispatcher(configs, nil)
	require.NoError(t, d.Reload(context.Background()))
	app := newProtectedApp(d)

	valid := sign(t, key, rs.issuer("alpha"), time.Hour)

	status, body := get(t, app, "/me", valid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "t-a", body["tenant_id"])

	status, body = get(t, app, "/me", sign(t, key, rs.issuer("alpha"), -time.Hour))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, map[string]any{"error": "TOKEN_EXPIRED", "status": float64(401)}, body)

	for name, token := range map[string]string{
		"no header":      "",
		"malformed":      "abc",
		"unknown issuer": sign(t, key, rs.issuer("gamma"), time.Hour),
	} {
		status, body = get(t, app, "/me", token)
		assert.Equal(t, http.StatusUnauthorized, status, name)
		assert.Equal(t, "Invalid token", body["error"], name)

		status, body = get(t, app, "/open", token)
		assert.Equal(t, http.StatusOK, status, name)
		assert.Equal(t, false, body["authenticated"], name)
	}

	status, body = get(t, app, "/admin", valid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ROLE_admin", body["scope"])
	status, _ = get(t, app, "/auditor", valid)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = get(t, app, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
