package rbacinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/rbac"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

// PostgresRBACRepository stores groups, roles and their maps.
type PostgresRBACRepository struct {
	db *sqlx.DB
}

func NewPostgresRBACRepository(db *sqlx.DB) rbac.Repository {
	return &PostgresRBACRepository{db: db}
}

func (r *PostgresRBACRepository) exec(ctx context.Context) sqlx.ExtContext {
	return txx.Executor(ctx, r.db)
}

type roleRow struct {
	ID          string    `db:"role_id"`
	TenantID    string    `db:"tenant_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsDefault   bool      `db:"is_default"`
	IsSuperRole bool      `db:"is_super_role"`
	CreatedAt   time.Time `db:"created_at"`
}

type groupRow struct {
	ID          string    `db:"group_id"`
	TenantID    string    `db:"tenant_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsAdmin     bool      `db:"is_admin"`
	IsDefault   bool      `db:"is_default"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *PostgresRBACRepository) FindRoleByName(ctx context.Context, tenantID kernel.TenantID, name string) (*rbac.Role, error) {
	var row roleRow
	query := `SELECT role_id, tenant_id, name, description, is_default, is_super_role, created_at
		FROM roles WHERE tenant_id = $1 AND name = $2`
	if err := sqlx.GetContext(ctx, r.exec(ctx), &row, query, tenantID.String(), name); err != nil {
		if err == sql.ErrNoRows {
			return nil, rbac.ErrRoleNotFound()
		}
		return nil, errx.Wrap(err, "failed to find role", errx.TypeInternal)
	}
	return &rbac.Role{
		ID:          kernel.RoleID(row.ID),
		TenantID:    kernel.TenantID(row.TenantID),
		Name:        row.Name,
		Description: row.Description,
		IsDefault:   row.IsDefault,
		IsSuperRole: row.IsSuperRole,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (r *PostgresRBACRepository) CreateRole(ctx context.Context, role *rbac.Role) error {
	query := `
		INSERT INTO roles (role_id, tenant_id, name, description, is_default, is_super_role, created_at)
		VALUES (:role_id, :tenant_id, :name, :description, :is_default, :is_super_role, :created_at)`
	row := roleRow{
		ID:          role.ID.String(),
		TenantID:    role.TenantID.String(),
		Name:        role.Name,
		Description: role.Description,
		IsDefault:   role.IsDefault,
		IsSuperRole: role.IsSuperRole,
		CreatedAt:   role.CreatedAt,
	}
	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, row); err != nil {
		return errx.Wrap(err, "failed to create role", errx.TypeInternal).WithDetail("role", role.Name)
	}
	return nil
}

func (r *PostgresRBACRepository) FindAdminGroup(ctx context.Context, tenantID kernel.TenantID) (*rbac.Group, error) {
	var row groupRow
	query := `SELECT group_id, tenant_id, name, description, is_admin, is_default, active, created_at
		FROM groups WHERE tenant_id = $1 AND is_admin AND is_default`
	if err := sqlx.GetContext(ctx, r.exec(ctx), &row, query, tenantID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, rbac.ErrGroupNotFound()
		}
		return nil, errx.Wrap(err, "failed to find admin group", errx.TypeInternal)
	}
	return &rbac.Group{
		ID:          kernel.GroupID(row.ID),
		TenantID:    kernel.TenantID(row.TenantID),
		Name:        row.Name,
		Description: row.Description,
		IsAdmin:     row.IsAdmin,
		IsDefault:   row.IsDefault,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (r *PostgresRBACRepository) CreateGroup(ctx context.Context, g *rbac.Group) error {
	query := `
		INSERT INTO groups (group_id, tenant_id, name, description, is_admin, is_default, active, created_at)
		VALUES (:group_id, :tenant_id, :name, :description, :is_admin, :is_default, :active, :created_at)`
	row := groupRow{
		ID:          g.ID.String(),
		TenantID:    g.TenantID.String(),
		Name:        g.Name,
		Description: g.Description,
		IsAdmin:     g.IsAdmin,
		IsDefault:   g.IsDefault,
		Active:      g.Active,
		CreatedAt:   g.CreatedAt,
	}
	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, row); err != nil {
		return errx.Wrap(err, "failed to create group", errx.TypeInternal).WithDetail("group", g.Name)
	}
	return nil
}

func (r *PostgresRBACRepository) AssignRoleToGroup(ctx context.Context, groupID kernel.GroupID, roleID kernel.RoleID) error {
	query := `INSERT INTO group_role_map (group_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.exec(ctx).ExecContext(ctx, query, groupID.String(), roleID.String()); err != nil {
		return errx.Wrap(err, "failed to assign role to group", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRBACRepository) AddUserToGroup(ctx context.Context, groupID kernel.GroupID, userID kernel.UserID) error {
	query := `INSERT INTO user_group_map (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.exec(ctx).ExecContext(ctx, query, groupID.String(), userID.String()); err != nil {
		return errx.Wrap(err, "failed to add user to group", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRBACRepository) GroupRoles(ctx context.Context, groupID kernel.GroupID) ([]kernel.RoleID, error) {
	var ids []kernel.RoleID
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &ids, `SELECT role_id FROM group_role_map WHERE group_id = $1`, groupID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list group roles", errx.TypeInternal)
	}
	return ids, nil
}

func (r *PostgresRBACRepository) GroupMembers(ctx context.Context, groupID kernel.GroupID) ([]kernel.UserID, error) {
	var ids []kernel.UserID
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &ids, `SELECT user_id FROM user_group_map WHERE group_id = $1`, groupID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list group members", errx.TypeInternal)
	}
	return ids, nil
}
