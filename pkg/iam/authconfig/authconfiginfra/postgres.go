package authconfiginfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

const configColumns = `auth_id, tenant_id, sso_type, issuer_uri, auth_server_url, token_endpoint,
	jwk_uri, client_id, redirect_uri, login_url, scopes, created_at`

// PostgresConfigRepository stores one auth-provider config per tenant.
type PostgresConfigRepository struct {
	db *sqlx.DB
}

func NewPostgresConfigRepository(db *sqlx.DB) authconfig.Repository {
	return &PostgresConfigRepository{db: db}
}

func (r *PostgresConfigRepository) exec(ctx context.Context) sqlx.ExtContext {
	return txx.Executor(ctx, r.db)
}

func (r *PostgresConfigRepository) Create(ctx context.Context, c *authconfig.Config) error {
	query := `
		INSERT INTO auth_provider_configs (
			auth_id, tenant_id, sso_type, issuer_uri, auth_server_url, token_endpoint,
			jwk_uri, client_id, redirect_uri, login_url, scopes, created_at
		) VALUES (
			:auth_id, :tenant_id, :sso_type, :issuer_uri, :auth_server_url, :token_endpoint,
			:jwk_uri, :client_id, :redirect_uri, :login_url, :scopes, :created_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, toPersistence(c)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation on tenant
			return authconfig.ErrConfigExists().WithDetail("tenant_id", c.TenantID.String())
		}
		return errx.Wrap(err, "failed to create auth provider config", errx.TypeInternal).
			WithDetail("tenant_id", c.TenantID.String())
	}
	return nil
}

func (r *PostgresConfigRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) (*authconfig.Config, error) {
	var row configPersistence
	query := `SELECT ` + configColumns + ` FROM auth_provider_configs WHERE tenant_id = $1`
	if err := sqlx.GetContext(ctx, r.exec(ctx), &row, query, tenantID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, authconfig.ErrConfigNotFound()
		}
		return nil, errx.Wrap(err, "failed to find auth provider config", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

func (r *PostgresConfigRepository) ExistsForTenant(ctx context.Context, tenantID kernel.TenantID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM auth_provider_configs WHERE tenant_id = $1)`
	if err := sqlx.GetContext(ctx, r.exec(ctx), &exists, query, tenantID.String()); err != nil {
		return false, errx.Wrap(err, "failed to check auth provider config", errx.TypeInternal)
	}
	return exists, nil
}

func (r *PostgresConfigRepository) List(ctx context.Context) ([]*authconfig.Config, error) {
	var rows []configPersistence
	query := `SELECT ` + configColumns + ` FROM auth_provider_configs ORDER BY created_at`
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to list auth provider configs", errx.TypeInternal)
	}
	configs := make([]*authconfig.Config, len(rows))
	for i, row := range rows {
		configs[i] = row.toDomain()
	}
	return configs, nil
}

func (r *PostgresConfigRepository) UpdateURLs(ctx context.Context, tenantID kernel.TenantID, redirectURI, loginURL string) error {
	query := `UPDATE auth_provider_configs SET redirect_uri = $1, login_url = $2 WHERE tenant_id = $3`
	result, err := r.exec(ctx).ExecContext(ctx, query, redirectURI, loginURL, tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to update auth provider config urls", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on config update", errx.TypeInternal)
	}
	if rows == 0 {
		return authconfig.ErrConfigNotFound()
	}
	return nil
}

func (r *PostgresConfigRepository) DeleteByTenant(ctx context.Context, tenantID kernel.TenantID) error {
	if _, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM auth_provider_configs WHERE tenant_id = $1`, tenantID.String()); err != nil {
		return errx.Wrap(err, "failed to delete auth provider config", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}
	return nil
}

type configPersistence struct {
	ID            string    `db:"auth_id"`
	TenantID      string    `db:"tenant_id"`
	SSOType       string    `db:"sso_type"`
	IssuerURI     string    `db:"issuer_uri"`
	AuthServerURL string    `db:"auth_server_url"`
	TokenEndpoint string    `db:"token_endpoint"`
	JWKURI        string    `db:"jwk_uri"`
	ClientID      string    `db:"client_id"`
	RedirectURI   string    `db:"redirect_uri"`
	LoginURL      string    `db:"login_url"`
	Scopes        string    `db:"scopes"`
	CreatedAt     time.Time `db:"created_at"`
}

func toPersistence(c *authconfig.Config) configPersistence {
	return configPersistence{
		ID:            c.ID,
		TenantID:      c.TenantID.String(),
		SSOType:       string(c.SSOType),
		IssuerURI:     c.IssuerURI,
		AuthServerURL: c.AuthServerURL,
		TokenEndpoint: c.TokenEndpoint,
		JWKURI:        c.JWKURI,
		ClientID:      c.ClientID,
		RedirectURI:   c.RedirectURI,
		LoginURL:      c.LoginURL,
		Scopes:        c.Scopes,
		CreatedAt:     c.CreatedAt,
	}
}

func (p configPersistence) toDomain() *authconfig.Config {
	return &authconfig.Config{
		ID:            p.ID,
		TenantID:      kernel.TenantID(p.TenantID),
		SSOType:       iam.SSOType(p.SSOType),
		IssuerURI:     p.IssuerURI,
		AuthServerURL: p.AuthServerURL,
		TokenEndpoint: p.TokenEndpoint,
		JWKURI:        p.JWKURI,
		ClientID:      p.ClientID,
		RedirectURI:   p.RedirectURI,
		LoginURL:      p.LoginURL,
		Scopes:        p.Scopes,
		CreatedAt:     p.CreatedAt,
	}
}
