package user

import (
	"context"

	"github.com/secufusion/iamplane/pkg/kernel"
)

// UniqueField names a user column guarded by a unique index.
type UniqueField string

const (
	FieldUserName UniqueField = "user_name"
	FieldEmail    UniqueField = "email"
	FieldPhone    UniqueField = "phone_no"
)

// Repository persists local user mirrors. Every method joins the
// transaction carried by ctx, if any.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByUserName(ctx context.Context, userName string) (*User, error)
	FindDefaultByTenant(ctx context.Context, tenantID kernel.TenantID) (*User, error)
	ExistsBy(ctx context.Context, field UniqueField, value string) (bool, error)
	ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*User, error)
	List(ctx context.Context) ([]*User, error)

	// Update rewrites the profile fields of an existing user.
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id kernel.UserID) error

	// LinkRemote records the IdP id of a user and its new status.
	LinkRemote(ctx context.Context, id kernel.UserID, keycloakUserID string, status Status) error
	DeleteByTenant(ctx context.Context, tenantID kernel.TenantID) (int64, error)
}
