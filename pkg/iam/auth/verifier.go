package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// RolePrefix is prepended to every realm role when it becomes a scope.
const RolePrefix = "ROLE_"

// UnknownKeyRefreshInterval bounds how often a token with an unknown key id
// may trigger a refetch of a realm's key set. The first refetch is immediate.
const UnknownKeyRefreshInterval = time.Minute

var signingMethods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512"}

var ErrRegistry = errx.NewRegistry("AUTH")

var CodeKeySetUnavailable = ErrRegistry.Register("KEY_SET_UNAVAILABLE", errx.TypeExternal, http.StatusBadGateway, "Signing keys could not be loaded")

// Claims is the subset of a realm access token the control plane reads.
type Claims struct {
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// Verifier checks tokens minted by one realm against its published key set.
type Verifier struct {
	issuer   string
	realm    string
	tenantID kernel.TenantID
	jwksURL  string
	http     *resty.Client

	mu   sync.RWMutex
	keys keyfunc.Keyfunc

	refetch  singleflight.Group
	refetchN *rate.Limiter
}

// NewVerifier loads the key set of cfg's realm. A realm whose keys cannot
// be fetched yields no verifier.
func NewVerifier(ctx context.Context, cfg *authconfig.Config, client *resty.Client) (*Verifier, error) {
	if cfg.IssuerURI == "" {
		return nil, ErrRegistry.NewWithMessage(CodeKeySetUnavailable, "config has no issuer")
	}
	if client == nil {
		client = resty.New()
	}
	issuer := strings.TrimRight(cfg.IssuerURI, "/")
	v := &Verifier{
		issuer:   cfg.IssuerURI,
		realm:    issuer[strings.LastIndex(issuer, "/")+1:],
		tenantID: cfg.TenantID,
		jwksURL:  cfg.KeySetURI(),
		http:     client,
		refetchN: rate.NewLimiter(rate.Every(UnknownKeyRefreshInterval), 1),
	}
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Verifier) Issuer() string { return v.issuer }

func (v *Verifier) refresh(ctx context.Context) error {
	resp, err := v.http.R().SetContext(ctx).Get(v.jwksURL)
	if err != nil {
		return ErrRegistry.NewWithCause(CodeKeySetUnavailable, err).WithDetail("jwks_uri", v.jwksURL)
	}
	if resp.IsError() {
		return ErrRegistry.New(CodeKeySetUnavailable).
			WithDetail("jwks_uri", v.jwksURL).
			WithDetail("status", resp.StatusCode())
	}

	keys, err := keyfunc.NewJWKSetJSON(json.RawMessage(resp.Body()))
	if err != nil {
		return ErrRegistry.NewWithCause(CodeKeySetUnavailable, err).WithDetail("jwks_uri", v.jwksURL)
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return nil
}

// refetchForUnknownKey refreshes the key set on behalf of a token whose key
// id is not published. Concurrent callers share one fetch and the limiter
// caps how often a fetch may start, so forged key ids cannot drive traffic
// to the IdP. It reports whether fresh keys were loaded.
func (v *Verifier) refetchForUnknownKey(ctx context.Context) bool {
	loaded, _, _ := v.refetch.Do("jwks", func() (any, error) {
		if !v.refetchN.Allow() {
			return false, nil
		}
		if err := v.refresh(ctx); err != nil {
			logx.WithContext(ctx).WithError(err).WithField("issuer", v.issuer).Warn("key set refetch failed")
			return false, nil
		}
		return true, nil
	})
	return loaded.(bool)
}

func (v *Verifier) current() keyfunc.Keyfunc {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keys
}

// Verify checks signature, expiry and issuer. An unknown key id may trigger
// one rate-limited refetch of the key set, which covers realm key rotation.
func (v *Verifier) Verify(ctx context.Context, raw string) (*kernel.AuthContext, error) {
	refetched := false
	lookup := func(t *jwt.Token) (any, error) {
		key, err := v.current().Keyfunc(t)
		if err == nil || refetched {
			return key, err
		}
		refetched = true
		if !v.refetchForUnknownKey(ctx) {
			return nil, err
		}
		return v.current().Keyfunc(t)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, lookup,
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods(signingMethods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, iam.ErrTokenExpired()
	}
	if err != nil {
		return nil, iam.ErrRegistry.NewWithCause(iam.CodeInvalidToken, err)
	}

	scopes := make([]string, 0, len(claims.RealmAccess.Roles))
	for _, role := range claims.RealmAccess.Roles {
		scopes = append(scopes, RolePrefix+role)
	}
	return &kernel.AuthContext{
		UserID:   kernel.UserID(claims.Subject),
		TenantID: v.tenantID,
		Realm:    v.realm,
		Issuer:   v.issuer,
		Username: claims.PreferredUsername,
		Email:    claims.Email,
		Scopes:   scopes,
		Token:    raw,
	}, nil
}
