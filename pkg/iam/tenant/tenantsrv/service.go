package tenantsrv

import (
	"context"
	"strings"
	"time"

	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/domainx"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/rbac"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/jobx"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/txx"
)

// IssuerRegistry learns about realms that start or stop issuing tokens.
type IssuerRegistry interface {
	Register(ctx context.Context, cfg *authconfig.Config) error
	Unregister(issuer string)
}

// ConfigCache drops cached host lookups of a tenant.
type ConfigCache interface {
	Invalidate(ctx context.Context, t *tenant.Tenant)
}

// Deps are the collaborators of TenantService. Jobs, Issuers, Cache and
// Random are optional.
type Deps struct {
	Tenants tenant.Repository
	Types   tenant.TypeRepository
	Users   user.Repository
	RBAC    rbac.Repository
	Configs authconfig.Repository
	IdP     idpx.AdminClient
	Mailer  *WelcomeMailer
	Tx      txx.Runner
	Domains *domainx.Normalizer

	Jobs    jobx.Enqueuer
	Issuers IssuerRegistry
	Cache   ConfigCache
	Random  tenant.Random
}

// Options tunes provisioning.
type Options struct {
	IdPBaseURL  string
	SMTP        idpx.SMTP
	AutoResume  bool
	ResumeDelay time.Duration
	JobQueue    string
}

func OptionsFromConfig(cfg *config.Config) Options {
	queue := "provisioning"
	if len(cfg.Jobx.Queues) > 0 {
		queue = cfg.Jobx.Queues[0]
	}
	return Options{
		IdPBaseURL: cfg.IdP.BaseURL,
		SMTP: idpx.SMTP{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Auth:     cfg.SMTP.Auth,
			StartTLS: cfg.SMTP.StartTLS,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		},
		AutoResume:  cfg.Tenant.AutoResume,
		ResumeDelay: cfg.Tenant.ResumeDelay,
		JobQueue:    queue,
	}
}

// TenantService provisions tenants and serves their administrative surface.
type TenantService struct {
	tenants   tenant.Repository
	types     tenant.TypeRepository
	users     user.Repository
	rbac      rbac.Repository
	configs   authconfig.Repository
	idp       idpx.AdminClient
	mailer    *WelcomeMailer
	tx        txx.Runner
	domains   *domainx.Normalizer
	jobs      jobx.Enqueuer
	issuers   IssuerRegistry
	cache     ConfigCache
	usernames *tenant.UsernameGenerator
	opts      Options
}

func NewTenantService(deps Deps, opts Options) *TenantService {
	s := &TenantService{
		tenants: deps.Tenants,
		types:   deps.Types,
		users:   deps.Users,
		rbac:    deps.RBAC,
		configs: deps.Configs,
		idp:     deps.IdP,
		mailer:  deps.Mailer,
		tx:      deps.Tx,
		domains: deps.Domains,
		jobs:    deps.Jobs,
		issuers: deps.Issuers,
		cache:   deps.Cache,
		opts:    opts,
	}
	s.usernames = tenant.NewUsernameGenerator(func(ctx context.Context, name string) (bool, error) {
		return s.users.ExistsBy(ctx, user.FieldUserName, name)
	}, deps.Random)
	return s
}

func (s *TenantService) findByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if errx.HasCode(err, tenant.CodeTenantNotFound) {
		return nil, errx.ResourceNotFound("Tenant not found: " + id.String())
	}
	return t, err
}

func (s *TenantService) GetTenant(ctx context.Context, id kernel.TenantID) (*tenant.TenantResponse, error) {
	t, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := t.ToResponse()
	return &resp, nil
}

// ListTenants returns every tenant nested under its parent.
func (s *TenantService) ListTenants(ctx context.Context) ([]*tenant.Node, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, err
	}
	return tenant.Hierarchy(tenants), nil
}

// UpdateTenant replaces the profile of a tenant. Blank email, phone or
// domain and absent addresses keep their stored values. The name cannot
// change because the realm and client on the IdP are keyed by it.
func (s *TenantService) UpdateTenant(ctx context.Context, id kernel.TenantID, req tenant.CreateTenantRequest) (*tenant.TenantResponse, error) {
	req = req.Trimmed()

	t, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TenantName != "" && req.TenantName != t.Name {
		return nil, tenant.ErrNameImmutable().WithDetail("tenant_name", t.Name)
	}

	previous := *t
	if req.Domain != "" {
		canonical, err := s.domains.Normalize(req.Domain)
		if err != nil {
			return nil, err
		}
		t.Domain = canonical
	}
	if req.Email == "" {
		req.Email = previous.Email
	}
	if req.PhoneNo == "" {
		req.PhoneNo = previous.PhoneNo
	}
	req.ApplyTo(t)
	if req.TemporaryAddress == nil {
		t.TemporaryAddress = previous.TemporaryAddress
	}
	if req.PermanentAddress == nil {
		t.PermanentAddress = previous.PermanentAddress
	}
	if req.BillingAddress == nil {
		t.BillingAddress = previous.BillingAddress
	}
	if req.ParentTenantID == "" {
		t.ParentTenantID = previous.ParentTenantID
	}

	domainChanged := t.Domain != previous.Domain
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tenants.Update(ctx, t); err != nil {
			return err
		}
		if s.cache != nil {
			txx.OnCommit(ctx, "invalidate_auth_config", func(ctx context.Context) error {
				s.cache.Invalidate(ctx, &previous)
				return nil
			})
		}
		if domainChanged {
			return s.moveDomain(ctx, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id":   t.ID,
		"tenant_name": t.Name,
	}).Info("Tenant updated")

	resp := t.ToResponse()
	return &resp, nil
}

// moveDomain points the login URL, the stored auth-provider config and the
// realm client at the tenant's new domain. The client is only touched once
// the local rows have committed.
func (s *TenantService) moveDomain(ctx context.Context, t *tenant.Tenant) error {
	redirect := domainx.RedirectURI(t.Domain)
	if t.LoginURL != "" {
		t.LoginURL = domainx.LoginURL(s.opts.IdPBaseURL, t.Name, t.Domain)
		if err := s.tenants.SetLoginURL(ctx, t.ID, t.LoginURL); err != nil {
			return err
		}
	}

	err := s.configs.UpdateURLs(ctx, t.ID, redirect, domainx.LoginURL(s.opts.IdPBaseURL, t.Name, t.Domain))
	if err != nil && !errx.HasCode(err, authconfig.CodeConfigNotFound) {
		return err
	}

	if t.Status.Rank() < tenant.StatusClientCreated.Rank() {
		return nil
	}
	txx.OnCommit(ctx, "update_client_redirects", func(ctx context.Context) error {
		if err := s.idp.UpdateClientRedirects(ctx, t.RealmName, t.Name, []string{redirect}); err != nil {
			return tenant.ErrClientUpdateFailed(err).WithDetail("tenant_id", t.ID.String())
		}
		logx.WithContext(ctx).WithField("tenant_id", t.ID).Info("🔀 Realm client redirects moved to the new domain")
		return nil
	})
	return nil
}

// DeleteTenant removes the realm on a best-effort basis and then every
// local row of the tenant. A remote failure never blocks the local delete.
func (s *TenantService) DeleteTenant(ctx context.Context, id kernel.TenantID) error {
	t, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	log := logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id":   t.ID,
		"tenant_name": t.Name,
	})

	if err := s.idp.DeleteRealm(ctx, t.RealmName); err != nil && !idpx.IsNotFound(err) {
		log.WithError(err).Warn("⚠️  Realm deletion failed, deleting local rows anyway")
	}

	var issuer string
	if cfg, err := s.configs.FindByTenant(ctx, t.ID); err == nil {
		issuer = cfg.IssuerURI
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.configs.DeleteByTenant(ctx, t.ID); err != nil {
			return err
		}
		if _, err := s.users.DeleteByTenant(ctx, t.ID); err != nil {
			return err
		}
		return s.tenants.Delete(ctx, t.ID)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, t)
	}
	if s.issuers != nil && issuer != "" {
		s.issuers.Unregister(issuer)
	}
	log.Info("🗑️  Tenant deleted")
	return nil
}

func (s *TenantService) TenantTypes(ctx context.Context) ([]tenant.TenantType, error) {
	types, err := s.types.ListTypes(ctx)
	if err != nil {
		return nil, tenant.ErrRegistry.NewWithCause(tenant.CodeTenantTypesUnavailable, err)
	}
	return types, nil
}

func (s *TenantService) BillingTypes() []tenant.BillingType {
	return tenant.BillingTypes
}

// Check reports whether the first supplied value is still free.
func (s *TenantService) Check(ctx context.Context, req tenant.CheckRequest) (string, error) {
	var (
		field            tenant.UniqueField
		value            string
		taken, available string
	)
	switch {
	case strings.TrimSpace(req.TenantName) != "":
		field, value = tenant.FieldName, strings.TrimSpace(req.TenantName)
		taken, available = "Tenant name already exists.", "Tenant name is available."
	case strings.TrimSpace(req.DomainName) != "":
		canonical, err := s.domains.Normalize(req.DomainName)
		if err != nil {
			return "", err
		}
		field, value = tenant.FieldDomain, canonical
		taken, available = "Domain Name already exists.", "Domain name is available."
	case strings.TrimSpace(req.PhoneNumber) != "":
		field, value = tenant.FieldPhone, strings.TrimSpace(req.PhoneNumber)
		taken, available = "Phone Number already exists.", "Phone Number is available."
	case strings.TrimSpace(req.TenantEmail) != "":
		field, value = tenant.FieldEmail, strings.TrimSpace(req.TenantEmail)
		taken, available = "Email already exists.", "Email is available."
	default:
		return "", tenant.ErrMissingCheckParameter()
	}

	exists, err := s.tenants.ExistsBy(ctx, field, value)
	if err != nil {
		return "", err
	}
	if exists {
		return taken, nil
	}
	return available, nil
}
