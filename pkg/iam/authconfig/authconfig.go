// Package authconfig stores the public IdP endpoints of each tenant and
// resolves them from a host name.
package authconfig

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam"
	"github.com/secufusion/iamplane/pkg/kernel"
)

// DefaultScopes are requested by every tenant client.
const DefaultScopes = "openid profile email"

// Config is the 1:1 projection of a tenant's realm endpoints. It exists
// exactly when the tenant has reached ACTIVE at least once.
type Config struct {
	ID            string
	TenantID      kernel.TenantID
	SSOType       iam.SSOType
	IssuerURI     string
	AuthServerURL string
	TokenEndpoint string
	JWKURI        string
	ClientID      string
	RedirectURI   string
	LoginURL      string
	Scopes        string
	CreatedAt     time.Time
}

// NewKeycloakConfig derives the endpoints of realm on the IdP at base.
func NewKeycloakConfig(tenantID kernel.TenantID, base, realm, redirectURI, loginURL string) *Config {
	base = strings.TrimRight(base, "/")
	issuer := base + "/realms/" + realm
	return &Config{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		SSOType:       iam.SSOTypeKeycloak,
		IssuerURI:     issuer,
		AuthServerURL: base,
		TokenEndpoint: issuer + "/protocol/openid-connect/token",
		JWKURI:        issuer + "/protocol/openid-connect/certs",
		ClientID:      realm,
		RedirectURI:   redirectURI,
		LoginURL:      loginURL,
		Scopes:        DefaultScopes,
		CreatedAt:     time.Now().UTC(),
	}
}

// KeySetURI is where the realm publishes its signing keys.
func (c *Config) KeySetURI() string {
	if c.JWKURI != "" {
		return c.JWKURI
	}
	if c.IssuerURI == "" {
		return ""
	}
	return strings.TrimRight(c.IssuerURI, "/") + "/protocol/openid-connect/certs"
}

// Repository persists auth-provider configs. Every method joins the
// transaction carried by ctx, if any.
type Repository interface {
	Create(ctx context.Context, c *Config) error
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) (*Config, error)
	ExistsForTenant(ctx context.Context, tenantID kernel.TenantID) (bool, error)
	List(ctx context.Context) ([]*Config, error)

	// UpdateURLs rewrites the browser-facing URLs after a domain change.
	UpdateURLs(ctx context.Context, tenantID kernel.TenantID, redirectURI, loginURL string) error
	DeleteByTenant(ctx context.Context, tenantID kernel.TenantID) error
}

// AuthDetails is the public answer to "which realm does this host log in to".
type AuthDetails struct {
	TenantID    kernel.TenantID `json:"tenantId"`
	TenantKey   string          `json:"tenantKey"`
	Name        string          `json:"name"`
	TenantType  string          `json:"tenantType"`
	KeycloakURL string          `json:"keycloakUrl"`
	Realm       string          `json:"realm"`
	ClientID    string          `json:"clientId"`
	Issuer      string          `json:"issuer"`
	JWKURI      string          `json:"jwkUri"`
	TokenURI    string          `json:"tokenUri"`
	Domain      string          `json:"domain"`
	Status      string          `json:"status"`
}

var ErrRegistry = errx.NewRegistry("AUTHCONFIG")

var (
	CodeConfigNotFound = ErrRegistry.Register("AUTH_CONFIG_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Auth provider config not found")
	CodeConfigExists   = ErrRegistry.Register("AUTH_CONFIG_ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Auth provider config already exists")
	CodeHostRequired   = ErrRegistry.RegisterNumbered("HOST_REQUIRED", 4000, errx.TypeValidation, http.StatusBadRequest, "Host is required.")
)

func ErrConfigNotFound() *errx.Error { return ErrRegistry.New(CodeConfigNotFound) }
func ErrConfigExists() *errx.Error   { return ErrRegistry.New(CodeConfigExists) }
func ErrHostRequired() *errx.Error   { return ErrRegistry.New(CodeHostRequired) }

// Cache holds resolved AuthDetails keyed by normalized host.
type Cache interface {
	Get(ctx context.Context, host string) (*AuthDetails, bool)
	Set(ctx context.Context, host string, details *AuthDetails)
	Evict(ctx context.Context, hosts ...string)
}
