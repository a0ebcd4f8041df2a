package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/logx"
)

// serve runs the HTTP API, the job workers and the verifier refresher until
// SIGINT or SIGTERM.
func serve(cfg *config.Config) error {
	logx.Infof("🚀 Starting %s...", cfg.Server.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Cleanup()

	app := newApp(cfg, container)
	container.StartBackgroundServices(ctx)

	errCh := make(chan error, 1)
	go func() {
		logx.Info(strings.Repeat("=", 61))
		logx.Infof("🚀 Server listening on port %s", cfg.Server.Port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", cfg.Server.Port)
		logx.Infof("📈 Metrics: http://localhost:%s/metrics", cfg.Server.Port)
		logx.Info(strings.Repeat("=", 61))
		errCh <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errx.Wrap(err, "server error", errx.TypeInternal)
		}
		return nil
	case <-ctx.Done():
	}

	logx.Info("🛑 Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}
	logx.Info("✅ Server exited successfully")
	return nil
}

func newApp(cfg *config.Config, container *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.Server.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler(cfg.Server.Debug),
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		IdleTimeout:           120 * time.Second,
	})

	// Global Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// Health, info and metrics
	app.Get("/health", healthCheckHandler(cfg, container))
	app.Get("/", infoHandler(cfg))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// IAM routes
	container.IAM.RegisterRoutes(app)
	logx.Info("✓ IAM routes registered")

	app.Use(notFoundHandler)

	printRouteSummary()
	return app
}

// ============================================================================
// Handler Functions
// ============================================================================

func healthCheckHandler(cfg *config.Config, container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": cfg.Server.AppName,
			"version": cfg.Server.Version,
		}

		if container.DB != nil {
			if err := container.DB.PingContext(c.UserContext()); err != nil {
				health["db"] = "unhealthy"
				health["db_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["db"] = "healthy"
			}
		}

		if container.Redis != nil {
			if err := container.Redis.Ping(c.UserContext()).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["redis_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["redis"] = "healthy"
			}
		}

		health["issuers"] = len(container.IAM.Dispatcher.Issuers())

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func infoHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":     cfg.Server.AppName,
			"version":     cfg.Server.Version,
			"description": "Multi-tenant IAM control plane",
			"endpoints": fiber.Map{
				"tenants":       "/tenants",
				"users":         "/users",
				"tenant_config": "/tenant-config?host=",
				"health":        "/health",
				"metrics":       "/metrics",
			},
		})
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"message":    "The requested endpoint does not exist",
		"request_id": c.Get(fiber.HeaderXRequestID),
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler renders every failed request as an errx body.
func globalErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errx.HTTPErrorResponse{
				Success:   false,
				ErrorCode: "FIBER_ERROR",
				Message:   fe.Message,
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
		}

		e := errx.FromError(err)
		entry := logx.WithContext(c.UserContext()).WithError(err).WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"request_id": c.Get(fiber.HeaderXRequestID),
			"code":       e.Code,
		})
		if e.Status() >= fiber.StatusInternalServerError {
			entry.Error("Request error")
		} else {
			entry.Warn("Request rejected")
		}

		resp := e.ToHTTPResponse()
		if debug && e.Err != nil {
			if resp.Details == nil {
				resp.Details = map[string]interface{}{}
			}
			resp.Details["underlying_error"] = e.Err.Error()
		}
		return c.Status(e.Status()).JSON(resp)
	}
}

func printRouteSummary() {
	logx.Info("📋 Route Summary:")
	logx.Info("   ├─ Tenants: /tenants/*")
	logx.Info("   ├─ Users: /users/*")
	logx.Info("   ├─ Resolver: /tenant-config")
	logx.Info("   ├─ Health: /health")
	logx.Info("   └─ Metrics: /metrics")
}
