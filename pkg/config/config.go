package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/secufusion/iamplane/pkg/errx"
)

// Config is the full process configuration, assembled from the environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	IdP        IdPConfig
	Tenant     TenantConfig
	SMTP       SMTPConfig
	Notifx     NotifxConfig
	Jobx       JobxConfig
	AuthConfig AuthConfigConfig
}

// ServerConfig configures the HTTP edge.
type ServerConfig struct {
	Port        string
	CORSOrigins string
	AppName     string
	Version     string
	Debug       bool
	BodyLimitMB int
}

// AuthConfigConfig configures the host resolver cache and the verifier index.
type AuthConfigConfig struct {
	CacheTTL        time.Duration
	VerifierRefresh time.Duration

	// UserAdminScopes, when set, are required to create, update or delete users
	UserAdminScopes []string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server:     loadServerConfig(),
		Database:   loadDatabaseConfig(),
		Redis:      loadRedisConfig(),
		IdP:        loadIdPConfig(),
		Tenant:     loadTenantConfig(),
		SMTP:       loadSMTPConfig(),
		Notifx:     loadNotifxConfig(),
		Jobx:       loadJobxConfig(),
		AuthConfig: loadAuthConfigConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the provisioning flow cannot run without.
func (c *Config) Validate() error {
	if err := c.Tenant.validate(); err != nil {
		return err
	}
	if c.IdP.Provider == IdPProviderKeycloak && c.IdP.BaseURL == "" {
		return errx.Validation("IDP_BASE_URL is required for the keycloak provider")
	}
	if c.Notifx.Provider == "smtp" && (c.SMTP.Host == "" || c.SMTP.From == "") {
		return errx.Validation("SMTP_HOST and SMTP_FROM are required for the smtp mail provider")
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppName:     getEnv("APP_NAME", "Secufusion IAM"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Debug:       getEnvBool("DEBUG", false),
		BodyLimitMB: getEnvInt("BODY_LIMIT_MB", 4),
	}
}

func loadAuthConfigConfig() AuthConfigConfig {
	return AuthConfigConfig{
		CacheTTL:        getEnvDuration("AUTHCONFIG_CACHE_TTL", 5*time.Minute),
		VerifierRefresh: getEnvDuration("AUTH_VERIFIER_REFRESH", 10*time.Minute),
		UserAdminScopes: getEnvStringSlice("AUTH_USER_ADMIN_SCOPES", nil),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
