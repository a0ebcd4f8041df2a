package iamcontainer

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/domainx"
	"github.com/secufusion/iamplane/pkg/iam/auth"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfigapi"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfiginfra"
	"github.com/secufusion/iamplane/pkg/iam/authconfig/authconfigsrv"
	"github.com/secufusion/iamplane/pkg/iam/rbac"
	"github.com/secufusion/iamplane/pkg/iam/rbac/rbacinfra"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantapi"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantinfra"
	"github.com/secufusion/iamplane/pkg/iam/tenant/tenantsrv"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/iam/user/userapi"
	"github.com/secufusion/iamplane/pkg/iam/user/userinfra"
	"github.com/secufusion/iamplane/pkg/iam/user/usersrv"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/jobx"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/secufusion/iamplane/pkg/txx"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// ---------------------------------------------------------------------------

type Deps struct {
	// DB is nil in memory mode, where every repository lives in process
	DB    *sqlx.DB
	Redis redis.UniversalClient
	Cfg   *config.Config

	IdP    idpx.AdminClient
	Mailer *notifx.Client
	Jobs   *jobx.Client

	// HTTP fetches realm key sets
	HTTP *resty.Client
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// ---------------------------------------------------------------------------

type Container struct {
	// Services
	TenantService     *tenantsrv.TenantService
	UserService       *usersrv.UserService
	AuthConfigService *authconfigsrv.AuthConfigService

	// Verifier index, reloaded in the background
	Dispatcher *auth.Dispatcher

	// API handlers
	TenantHandlers     *tenantapi.TenantHandlers
	UserHandlers       *userapi.UserHandlers
	AuthConfigHandlers *authconfigapi.AuthConfigHandlers

	// Middleware
	AuthMiddleware *auth.TokenMiddleware

	refresh     time.Duration
	adminScopes []string
}

type repositories struct {
	tenants tenant.Repository
	types   tenant.TypeRepository
	users   user.Repository
	rbac    rbac.Repository
	configs authconfig.Repository
	tx      txx.Runner
}

func newRepositories(db *sqlx.DB) repositories {
	if db == nil {
		logx.Warn("  ⚠️  No database configured, using in-memory repositories")
		tenants := tenantinfra.NewMemoryTenantRepository()
		return repositories{
			tenants: tenants,
			types:   tenants,
			users:   userinfra.NewMemoryUserRepository(),
			rbac:    rbacinfra.NewMemoryRBACRepository(),
			configs: authconfiginfra.NewMemoryConfigRepository(),
			tx:      txx.NewScopeRunner(),
		}
	}
	tenants := tenantinfra.NewPostgresTenantRepository(db)
	return repositories{
		tenants: tenants,
		types:   tenants,
		users:   userinfra.NewPostgresUserRepository(db),
		rbac:    rbacinfra.NewPostgresRBACRepository(db),
		configs: authconfiginfra.NewPostgresConfigRepository(db),
		tx:      txx.NewSQLRunner(db),
	}
}

// ---------------------------------------------------------------------------
// New: constructs the entire IAM dependency graph.
// Order matters: infra → repos → services → handlers → middleware.
// ---------------------------------------------------------------------------

func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing IAM container...")

	c := &Container{
		refresh:     deps.Cfg.AuthConfig.VerifierRefresh,
		adminScopes: deps.Cfg.AuthConfig.UserAdminScopes,
	}

	// ── Repositories ─────────────────────────────────────────────────────

	repos := newRepositories(deps.DB)

	// ── Infrastructure services ──────────────────────────────────────────

	normalizer, err := domainx.NewNormalizer(deps.Cfg.Tenant.DomainSuffix)
	if err != nil {
		return nil, err
	}

	mailer, err := tenantsrv.NewWelcomeMailer(deps.Mailer)
	if err != nil {
		return nil, err
	}

	var cache authconfig.Cache
	if deps.Redis != nil {
		cache = authconfiginfra.NewRedisCache(deps.Redis, deps.Cfg.AuthConfig.CacheTTL)
		logx.Info("  ✅ Using Redis cache for tenant auth configs")
	} else {
		logx.Warn("  ⚠️  Tenant auth config cache disabled")
	}

	c.Dispatcher = auth.NewDispatcher(repos.configs, deps.HTTP)

	// ── Domain services ──────────────────────────────────────────────────

	c.AuthConfigService = authconfigsrv.NewAuthConfigService(repos.tenants, repos.configs, cache)

	tenantDeps := tenantsrv.Deps{
		Tenants: repos.tenants,
		Types:   repos.types,
		Users:   repos.users,
		RBAC:    repos.rbac,
		Configs: repos.configs,
		IdP:     deps.IdP,
		Mailer:  mailer,
		Tx:      repos.tx,
		Domains: normalizer,
		Issuers: c.Dispatcher,
		Cache:   c.AuthConfigService,
	}
	if deps.Jobs != nil {
		tenantDeps.Jobs = deps.Jobs
	}
	c.TenantService = tenantsrv.NewTenantService(tenantDeps, tenantsrv.OptionsFromConfig(deps.Cfg))
	if deps.Jobs != nil {
		c.TenantService.RegisterJobs(deps.Jobs)
	}

	c.UserService = usersrv.NewUserService(usersrv.Deps{
		Users:   repos.users,
		Tenants: repos.tenants,
		Configs: repos.configs,
		IdP:     deps.IdP,
		Mailer:  mailer,
		Tx:      repos.tx,
	})

	// ── API handlers ─────────────────────────────────────────────────────

	c.TenantHandlers = tenantapi.NewTenantHandlers(c.TenantService)
	c.UserHandlers = userapi.NewUserHandlers(c.UserService)
	c.AuthConfigHandlers = authconfigapi.NewAuthConfigHandlers(c.AuthConfigService)

	// ── Middleware ────────────────────────────────────────────────────────

	c.AuthMiddleware = auth.NewAuthMiddleware(c.Dispatcher)

	logx.Info("✅ IAM container initialized")
	return c, nil
}

// RegisterRoutes mounts every IAM endpoint. Tenant administration is open
// as it was before a policy layer existed. The caller echo needs a verified
// token, and user writes need one of the configured admin scopes if any.
func (c *Container) RegisterRoutes(router fiber.Router) {
	router.Use(c.AuthMiddleware.Authenticate())

	c.AuthConfigHandlers.RegisterRoutes(router)
	c.TenantHandlers.RegisterRoutes(router)

	var manage []fiber.Handler
	if len(c.adminScopes) > 0 {
		manage = append(manage, c.AuthMiddleware.RequireScope(c.adminScopes...))
		logx.Infof("  🔒 User writes require one of %v", c.adminScopes)
	}
	c.UserHandlers.RegisterRoutes(router, c.AuthMiddleware.RequireAuth(), manage...)
}

// StartBackgroundServices builds the verifier index and keeps it fresh.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	if err := c.Dispatcher.Reload(ctx); err != nil {
		logx.WithError(err).Error("❌ Initial verifier index load failed")
	}
	if c.refresh <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(c.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Dispatcher.Reload(ctx); err != nil && ctx.Err() == nil {
					logx.WithError(err).Warn("⚠️  Verifier index reload failed")
				}
			}
		}
	}()
	logx.Info("  ✅ Verifier index refresher started")
}
