// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, IdP session, mail,
// job queue) and composes the IAM bounded-context container.
package main

import (
	"context"
	"fmt"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/go-resty/resty/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/secufusion/iamplane/migrations"
	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/iamcontainer"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/idpx/idpxkeycloak"
	"github.com/secufusion/iamplane/pkg/idpx/idpxmemory"
	"github.com/secufusion/iamplane/pkg/jobx"
	"github.com/secufusion/iamplane/pkg/jobx/jobxmemory"
	"github.com/secufusion/iamplane/pkg/jobx/jobxredis"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/secufusion/iamplane/pkg/notifx/notifxconsole"
	"github.com/secufusion/iamplane/pkg/notifx/notifxses"
	"github.com/secufusion/iamplane/pkg/notifx/notifxsmtp"
)

// Container holds shared infrastructure and composed module containers.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB     *sqlx.DB
	Redis  *redis.Client
	IdP    idpx.AdminClient
	Mailer *notifx.Client
	Jobs   *jobx.Client

	// Bounded-context containers
	IAM *iamcontainer.Container
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	if err := c.initInfrastructure(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}
	if err := c.initModules(); err != nil {
		c.Cleanup()
		return nil, err
	}

	logx.Info("✅ Application container initialized")
	return c, nil
}

// ---------------------------------------------------------------------------
// Infrastructure: DB, Redis, IdP, mail, jobs
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) error {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	if c.Config.Database.Enabled {
		db, err := openDatabase(c.Config.Database)
		if err != nil {
			return err
		}
		c.DB = db
		logx.Info("  ✅ Database connected")

		if c.Config.Database.MigrateOnStart {
			applied, err := migrations.Up(ctx, db.DB)
			if err != nil {
				return err
			}
			logx.Infof("  ✅ Migrations applied (%d new)", applied)
		}
	}

	// 2. Redis
	if c.Config.Redis.Enabled {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Address(),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if _, err := c.Redis.Ping(ctx).Result(); err != nil {
			return errx.Wrap(err, "failed to connect to Redis", errx.TypeInternal)
		}
		logx.Info("  ✅ Redis connected")
	}

	// 3. IdP administrative session
	if err := c.initIdP(ctx); err != nil {
		return err
	}

	// 4. Mail
	if err := c.initMailer(ctx); err != nil {
		return err
	}

	// 5. Jobs
	var queue jobx.Queue
	if c.Redis != nil {
		queue = jobxredis.New(c.Redis)
		logx.Info("  ✅ Using Redis job queue")
	} else {
		queue = jobxmemory.New()
		logx.Warn("  ⚠️  Using in-memory job queue (jobs are lost on restart)")
	}
	c.Jobs = jobx.NewClient(queue, jobx.OptionsFromConfig(c.Config.Jobx))

	logx.Info("✅ Infrastructure initialized")
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, errx.Wrap(err, "failed to connect to database", errx.TypeInternal)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func (c *Container) initIdP(ctx context.Context) error {
	switch c.Config.IdP.Provider {
	case config.IdPProviderKeycloak:
		c.IdP = idpxkeycloak.New(idpxkeycloak.FromConfig(c.Config.IdP))
	case config.IdPProviderMemory:
		c.IdP = idpxmemory.New()
		logx.Warn("  ⚠️  Using in-memory IdP (realms are not real)")
	default:
		return errx.Validation(fmt.Sprintf("unknown IDP_PROVIDER: %s (use 'keycloak' or 'memory')", c.Config.IdP.Provider))
	}

	if err := c.IdP.Open(ctx); err != nil {
		return err
	}
	logx.Infof("  ✅ IdP session opened (%s)", c.Config.IdP.Provider)
	return nil
}

func (c *Container) initMailer(ctx context.Context) error {
	var sender notifx.Sender
	switch c.Config.Notifx.Provider {
	case "ses":
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(c.Config.Notifx.AWSRegion))
		if err != nil {
			return errx.Wrap(err, "unable to load AWS SDK config", errx.TypeInternal)
		}
		sender = notifxses.New(ses.NewFromConfig(awsCfg))
		logx.Infof("  ✅ SES mail provider configured (region: %s)", c.Config.Notifx.AWSRegion)
	case "smtp":
		p, err := notifxsmtp.New(c.Config.SMTP)
		if err != nil {
			return err
		}
		sender = p
		logx.Infof("  ✅ SMTP mail provider configured (%s:%d)", c.Config.SMTP.Host, c.Config.SMTP.Port)
	case "console":
		sender = notifxconsole.New()
		logx.Info("  ✅ Console mail provider configured")
	default:
		return errx.Validation(fmt.Sprintf("unknown NOTIFX_PROVIDER: %s (use 'console', 'ses' or 'smtp')", c.Config.Notifx.Provider))
	}

	from := c.Config.Notifx.FromAddress
	if name := c.Config.Notifx.FromName; name != "" {
		from = fmt.Sprintf("%s <%s>", name, from)
	}
	c.Mailer = notifx.NewClient(sender, from)
	return nil
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() error {
	logx.Info("📦 Initializing modules...")

	deps := iamcontainer.Deps{
		DB:     c.DB,
		Cfg:    c.Config,
		IdP:    c.IdP,
		Mailer: c.Mailer,
		Jobs:   c.Jobs,
		HTTP:   resty.New().SetTimeout(c.Config.IdP.Timeout),
	}
	if c.Redis != nil {
		deps.Redis = c.Redis
	}

	iam, err := iamcontainer.New(deps)
	if err != nil {
		return err
	}
	c.IAM = iam
	return nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting background services...")

	c.IAM.StartBackgroundServices(ctx)

	go func() {
		if err := c.Jobs.Start(ctx); err != nil {
			logx.WithError(err).Error("❌ Job workers stopped")
		}
	}()
	logx.Info("  ✅ Job workers started")
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.IdP != nil {
		if err := c.IdP.Close(); err != nil {
			logx.Errorf("Error closing IdP session: %v", err)
		} else {
			logx.Info("  ✅ IdP session closed")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
