// Package rbac holds the tenant-scoped groups and roles mirrored locally.
package rbac

import (
	"context"
	"net/http"
	"time"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/kernel"
)

// Group is a tenant-scoped set of users. A tenant has at most one group
// that is both admin and default.
type Group struct {
	ID          kernel.GroupID
	TenantID    kernel.TenantID
	Name        string
	Description string
	IsAdmin     bool
	IsDefault   bool
	Active      bool
	CreatedAt   time.Time
}

// Role is a tenant-scoped permission bundle bound to groups.
type Role struct {
	ID          kernel.RoleID
	TenantID    kernel.TenantID
	Name        string
	Description string
	IsDefault   bool
	IsSuperRole bool
	CreatedAt   time.Time
}

// Repository persists groups, roles and their memberships. Bindings are
// idempotent.
type Repository interface {
	FindRoleByName(ctx context.Context, tenantID kernel.TenantID, name string) (*Role, error)
	CreateRole(ctx context.Context, r *Role) error
	FindAdminGroup(ctx context.Context, tenantID kernel.TenantID) (*Group, error)
	CreateGroup(ctx context.Context, g *Group) error
	AssignRoleToGroup(ctx context.Context, groupID kernel.GroupID, roleID kernel.RoleID) error
	AddUserToGroup(ctx context.Context, groupID kernel.GroupID, userID kernel.UserID) error
	GroupRoles(ctx context.Context, groupID kernel.GroupID) ([]kernel.RoleID, error)
	GroupMembers(ctx context.Context, groupID kernel.GroupID) ([]kernel.UserID, error)
}

var ErrRegistry = errx.NewRegistry("RBAC")

var (
	CodeRoleNotFound  = ErrRegistry.Register("ROLE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Role not found")
	CodeGroupNotFound = ErrRegistry.Register("GROUP_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Group not found")
)

func ErrRoleNotFound() *errx.Error  { return ErrRegistry.New(CodeRoleNotFound) }
func ErrGroupNotFound() *errx.Error { return ErrRegistry.New(CodeGroupNotFound) }

// AdminName is the name of a tenant's administrator role and group.
func AdminName(tenantName string) string {
	return tenantName + "_Admin"
}

// EnsureTenantAdmin creates or reuses the tenant's admin role and admin
// group, binds the role to the group and adds userID to it.
func EnsureTenantAdmin(ctx context.Context, repo Repository, tenantID kernel.TenantID, tenantName string, userID kernel.UserID) (*Group, error) {
	name := AdminName(tenantName)

	role, err := repo.FindRoleByName(ctx, tenantID, name)
	if errx.HasCode(err, CodeRoleNotFound) {
		role = &Role{
			ID:          kernel.NewRoleID(),
			TenantID:    tenantID,
			Name:        name,
			Description: "Administrator role",
			IsDefault:   true,
			IsSuperRole: true,
			CreatedAt:   time.Now().UTC(),
		}
		err = repo.CreateRole(ctx, role)
	}
	if err != nil {
		return nil, err
	}

	group, err := repo.FindAdminGroup(ctx, tenantID)
	if errx.HasCode(err, CodeGroupNotFound) {
		group = &Group{
			ID:          kernel.NewGroupID(),
			TenantID:    tenantID,
			Name:        name,
			Description: "Administrators of " + tenantName,
			IsAdmin:     true,
			IsDefault:   true,
			Active:      true,
			CreatedAt:   time.Now().UTC(),
		}
		err = repo.CreateGroup(ctx, group)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.AssignRoleToGroup(ctx, group.ID, role.ID); err != nil {
		return nil, err
	}
	if err := repo.AddUserToGroup(ctx, group.ID, userID); err != nil {
		return nil, err
	}
	return group, nil
}
