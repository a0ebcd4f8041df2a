package config

import (
	"strings"
	"time"

	"github.com/secufusion/iamplane/pkg/domainx"
	"github.com/secufusion/iamplane/pkg/errx"
)

const (
	IdPProviderKeycloak = "keycloak"
	IdPProviderMemory   = "memory"
)

// IdPConfig configures the administrative session against the IdP.
type IdPConfig struct {
	Provider string
	BaseURL  string

	AdminRealm        string
	AdminClientID     string
	AdminClientSecret string
	AdminUsername     string
	AdminPassword     string

	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
}

// TenantConfig configures provisioning.
type TenantConfig struct {
	// DomainSuffix is appended to the first label of every tenant domain,
	// e.g. ".motivitylabs.net"
	DomainSuffix string

	RealmPostLoginURL string
	OIDCRedirectURL   string

	AutoResume  bool
	ResumeDelay time.Duration
}

func (t TenantConfig) validate() error {
	if t.DomainSuffix == "" {
		return errx.Validation("TENANT_DOMAIN_SUFFIX is required")
	}
	if _, err := domainx.NewNormalizer(t.DomainSuffix); err != nil {
		return errx.Wrap(err, "TENANT_DOMAIN_SUFFIX must start with a dot and be a DNS suffix", errx.TypeValidation)
	}
	return nil
}

func loadIdPConfig() IdPConfig {
	return IdPConfig{
		Provider:          strings.ToLower(getEnv("IDP_PROVIDER", IdPProviderKeycloak)),
		BaseURL:           strings.TrimRight(getEnv("IDP_BASE_URL", ""), "/"),
		AdminRealm:        getEnv("IDP_ADMIN_REALM", "master"),
		AdminClientID:     getEnv("IDP_ADMIN_CLIENT_ID", "admin-cli"),
		AdminClientSecret: getEnv("IDP_ADMIN_CLIENT_SECRET", ""),
		AdminUsername:     getEnv("IDP_ADMIN_USERNAME", ""),
		AdminPassword:     getEnv("IDP_ADMIN_PASSWORD", ""),
		Timeout:           getEnvDuration("IDP_TIMEOUT", 15*time.Second),
		RetryAttempts:     uint(getEnvInt("IDP_RETRY_ATTEMPTS", 3)),
		RetryDelay:        getEnvDuration("IDP_RETRY_DELAY", 200*time.Millisecond),
		RetryMaxDelay:     getEnvDuration("IDP_RETRY_MAX_DELAY", 2*time.Second),
	}
}

func loadTenantConfig() TenantConfig {
	return TenantConfig{
		DomainSuffix:      strings.ToLower(getEnv("TENANT_DOMAIN_SUFFIX", "")),
		RealmPostLoginURL: getEnv("TENANT_REALM_POST_LOGIN_URL", ""),
		OIDCRedirectURL:   getEnv("TENANT_OIDC_REDIRECT_URL", ""),
		AutoResume:        getEnvBool("TENANT_AUTO_RESUME", true),
		ResumeDelay:       getEnvDuration("TENANT_RESUME_DELAY", time.Minute),
	}
}
