package authconfigsrv

import (
	"context"
	"strings"

	"github.com/secufusion/iamplane/pkg/domainx"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/logx"
)

// AuthConfigService answers which realm a host authenticates against.
type AuthConfigService struct {
	tenantRepo tenant.Repository
	configRepo authconfig.Repository
	cache      authconfig.Cache
}

// NewAuthConfigService builds the resolver; cache may be nil.
func NewAuthConfigService(tenantRepo tenant.Repository, configRepo authconfig.Repository, cache authconfig.Cache) *AuthConfigService {
	return &AuthConfigService{
		tenantRepo: tenantRepo,
		configRepo: configRepo,
		cache:      cache,
	}
}

// Resolve looks host up as a canonical domain, then as a tenant name, and
// projects the tenant's auth-provider config. host may be a full origin or
// URL; only its lower-cased host part is used.
func (s *AuthConfigService) Resolve(ctx context.Context, host string) (*authconfig.AuthDetails, error) {
	host = domainx.Host(host)
	if host == "" {
		return nil, authconfig.ErrHostRequired()
	}

	if s.cache != nil {
		if details, ok := s.cache.Get(ctx, host); ok {
			return details, nil
		}
	}

	t, err := s.tenantRepo.FindByDomain(ctx, host)
	if errx.HasCode(err, tenant.CodeTenantNotFound) {
		t, err = s.tenantRepo.FindByName(ctx, host)
	}
	if errx.HasCode(err, tenant.CodeTenantNotFound) {
		return nil, errx.ResourceNotFound("Tenant not found for: " + host)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := s.configRepo.FindByTenant(ctx, t.ID)
	if errx.HasCode(err, authconfig.CodeConfigNotFound) {
		return nil, errx.ResourceNotFound("Auth provider config missing")
	}
	if err != nil {
		return nil, err
	}

	details := project(t, cfg)
	if s.cache != nil {
		s.cache.Set(ctx, host, details)
	}
	logx.WithContext(ctx).WithFields(logx.Fields{
		"host":   host,
		"tenant": t.Name,
	}).Debug("resolved tenant auth config")
	return details, nil
}

// Invalidate drops every cached answer that could point at t.
func (s *AuthConfigService) Invalidate(ctx context.Context, t *tenant.Tenant) {
	if s.cache == nil || t == nil {
		return
	}
	s.cache.Evict(ctx, strings.ToLower(t.Domain), strings.ToLower(t.Name))
}

func project(t *tenant.Tenant, cfg *authconfig.Config) *authconfig.AuthDetails {
	return &authconfig.AuthDetails{
		TenantID:    t.ID,
		TenantKey:   t.Name,
		Name:        t.Name,
		TenantType:  t.TenantType,
		KeycloakURL: cfg.AuthServerURL,
		Realm:       t.RealmName,
		ClientID:    cfg.ClientID,
		Issuer:      cfg.IssuerURI,
		JWKURI:      cfg.JWKURI,
		TokenURI:    cfg.TokenEndpoint,
		Domain:      t.Domain,
		Status:      string(t.Status),
	}
}
