package tenantinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

const tenantColumns = `tenant_id, tenant_name, realm_name, domain, email, region, phone_no,
	tenant_type, industry, billing_cycle_type, status, login_url, parent_tenant_id,
	created_by, updated_by, created_at, updated_at`

const addressColumns = `id, tenant_id, kind, address_line1, address_line2, city, state, country, postal_code`

// PostgresTenantRepository stores tenants and their addresses.
type PostgresTenantRepository struct {
	db *sqlx.DB
}

var (
	_ tenant.Repository     = (*PostgresTenantRepository)(nil)
	_ tenant.TypeRepository = (*PostgresTenantRepository)(nil)
)

func NewPostgresTenantRepository(db *sqlx.DB) *PostgresTenantRepository {
	return &PostgresTenantRepository{db: db}
}

func (r *PostgresTenantRepository) exec(ctx context.Context) sqlx.ExtContext {
	return txx.Executor(ctx, r.db)
}

// Create inserts the tenant row and its addresses.
func (r *PostgresTenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO tenants (
			tenant_id, tenant_name, realm_name, domain, email, region, phone_no,
			tenant_type, industry, billing_cycle_type, status, login_url, parent_tenant_id,
			created_by, updated_by, created_at, updated_at
		) VALUES (
			:tenant_id, :tenant_name, :realm_name, :domain, :email, :region, :phone_no,
			:tenant_type, :industry, :billing_cycle_type, :status, :login_url, :parent_tenant_id,
			:created_by, :updated_by, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, toPersistence(t)); err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return errx.Wrap(err, "failed to create tenant", errx.TypeInternal).
			WithDetail("tenant_name", t.Name)
	}
	return r.insertAddresses(ctx, t)
}

func (r *PostgresTenantRepository) insertAddresses(ctx context.Context, t *tenant.Tenant) error {
	query := `
		INSERT INTO addresses (
			tenant_id, kind, address_line1, address_line2, city, state, country, postal_code
		) VALUES (
			:tenant_id, :kind, :address_line1, :address_line2, :city, :state, :country, :postal_code
		)`

	for _, kind := range []string{tenant.AddressTemporary, tenant.AddressPermanent, tenant.AddressBilling} {
		a := t.Addresses()[kind]
		if a == nil {
			continue
		}
		if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, toAddressPersistence(t.ID, kind, a)); err != nil {
			return errx.Wrap(err, "failed to save tenant address", errx.TypeInternal).
				WithDetail("tenant_id", t.ID.String()).
				WithDetail("kind", kind)
		}
	}
	return nil
}

func (r *PostgresTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	return r.findOne(ctx, `tenant_id = $1`, id.String())
}

func (r *PostgresTenantRepository) FindByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	return r.findOne(ctx, `tenant_name = $1`, name)
}

func (r *PostgresTenantRepository) FindByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	return r.findOne(ctx, `domain = $1`, domain)
}

func (r *PostgresTenantRepository) findOne(ctx context.Context, where string, arg any) (*tenant.Tenant, error) {
	var row tenantPersistence
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE ` + where
	if err := sqlx.GetContext(ctx, r.exec(ctx), &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrTenantNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant", errx.TypeInternal)
	}

	t := row.toDomain()
	addresses, err := r.addressesOf(ctx, []string{row.ID})
	if err != nil {
		return nil, err
	}
	attachAddresses(t, addresses[row.ID])
	return t, nil
}

func (r *PostgresTenantRepository) addressesOf(ctx context.Context, ids []string) (map[string][]addressPersistence, error) {
	var rows []addressPersistence
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE tenant_id = ANY($1) ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &rows, query, pq.Array(ids)); err != nil {
		return nil, errx.Wrap(err, "failed to load tenant addresses", errx.TypeInternal)
	}
	byTenant := make(map[string][]addressPersistence, len(ids))
	for _, a := range rows {
		byTenant[a.TenantID] = append(byTenant[a.TenantID], a)
	}
	return byTenant, nil
}

// ExistsBy probes one of the uniquely indexed columns.
func (r *PostgresTenantRepository) ExistsBy(ctx context.Context, field tenant.UniqueField, value string) (bool, error) {
	var query string
	switch field {
	case tenant.FieldName:
		query = `SELECT EXISTS(SELECT 1 FROM tenants WHERE tenant_name = $1)`
	case tenant.FieldDomain:
		query = `SELECT EXISTS(SELECT 1 FROM tenants WHERE domain = $1)`
	case tenant.FieldEmail:
		query = `SELECT EXISTS(SELECT 1 FROM tenants WHERE email = $1)`
	case tenant.FieldPhone:
		query = `SELECT EXISTS(SELECT 1 FROM tenants WHERE phone_no = $1)`
	default:
		return false, errx.Internal("unknown tenant field").WithDetail("field", string(field))
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(ctx), &exists, query, value); err != nil {
		return false, errx.Wrap(err, "failed to check tenant existence", errx.TypeInternal).
			WithDetail("field", string(field))
	}
	return exists, nil
}

// AdvanceStatus only updates a row that is still in from.
func (r *PostgresTenantRepository) AdvanceStatus(ctx context.Context, id kernel.TenantID, from, to tenant.Status) error {
	query := `UPDATE tenants SET status = $1, updated_at = $2 WHERE tenant_id = $3 AND status = $4`
	result, err := r.exec(ctx).ExecContext(ctx, query, string(to), time.Now().UTC(), id.String(), string(from))
	if err != nil {
		return errx.Wrap(err, "failed to advance tenant status", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on status advance", errx.TypeInternal)
	}
	if rows == 0 {
		return tenant.ErrStatusConflict(from, to).WithDetail("tenant_id", id.String())
	}
	return nil
}

func (r *PostgresTenantRepository) SetLoginURL(ctx context.Context, id kernel.TenantID, loginURL string) error {
	query := `UPDATE tenants SET login_url = $1, updated_at = $2 WHERE tenant_id = $3`
	result, err := r.exec(ctx).ExecContext(ctx, query, loginURL, time.Now().UTC(), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to save login url", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}
	return requireRow(result)
}

// Update rewrites the profile columns and replaces the addresses.
func (r *PostgresTenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	query := `
		UPDATE tenants SET
			domain = :domain,
			email = :email,
			region = :region,
			phone_no = :phone_no,
			tenant_type = :tenant_type,
			industry = :industry,
			billing_cycle_type = :billing_cycle_type,
			parent_tenant_id = :parent_tenant_id,
			updated_by = :updated_by,
			updated_at = :updated_at
		WHERE tenant_id = :tenant_id`

	t.UpdatedAt = time.Now().UTC()
	result, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, toPersistence(t))
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return errx.Wrap(err, "failed to update tenant", errx.TypeInternal).
			WithDetail("tenant_id", t.ID.String())
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if _, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM addresses WHERE tenant_id = $1`, t.ID.String()); err != nil {
		return errx.Wrap(err, "failed to replace tenant addresses", errx.TypeInternal)
	}
	return r.insertAddresses(ctx, t)
}

// Delete removes the addresses and then the tenant; users, groups, roles and
// the auth config go with it by cascade.
func (r *PostgresTenantRepository) Delete(ctx context.Context, id kernel.TenantID) error {
	if _, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM addresses WHERE tenant_id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete tenant addresses", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}
	result, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM tenants WHERE tenant_id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete tenant", errx.TypeInternal).
			WithDetail("tenant_id", id.String())
	}
	return requireRow(result)
}

func (r *PostgresTenantRepository) List(ctx context.Context) ([]*tenant.Tenant, error) {
	var rows []tenantPersistence
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at, tenant_name`
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to list tenants", errx.TypeInternal)
	}
	if len(rows) == 0 {
		return []*tenant.Tenant{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	addresses, err := r.addressesOf(ctx, ids)
	if err != nil {
		return nil, err
	}

	tenants := make([]*tenant.Tenant, len(rows))
	for i, row := range rows {
		tenants[i] = row.toDomain()
		attachAddresses(tenants[i], addresses[row.ID])
	}
	return tenants, nil
}

func (r *PostgresTenantRepository) ListTypes(ctx context.Context) ([]tenant.TenantType, error) {
	var types []tenant.TenantType
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &types, `SELECT id, name FROM tenant_types ORDER BY id`); err != nil {
		return nil, errx.Wrap(err, "failed to list tenant types", errx.TypeInternal)
	}
	if types == nil {
		types = []tenant.TenantType{}
	}
	return types, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return tenant.ErrTenantNotFound()
	}
	return nil
}

// duplicateError maps a unique violation to the coded error of its column.
func duplicateError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "tenants_tenant_name_key", "tenants_pkey":
		return tenant.ErrNameExists()
	case "tenants_domain_key":
		return tenant.ErrDomainExists()
	case "tenants_email_key":
		return tenant.ErrEmailExists()
	case "tenants_phone_no_key":
		return tenant.ErrPhoneExists()
	default:
		return tenant.ErrTenantExists().WithDetail("constraint", pqErr.Constraint)
	}
}
