package tenant

import (
	"context"

	"github.com/secufusion/iamplane/pkg/kernel"
)

// UniqueField names a tenant column guarded by a unique index.
type UniqueField string

const (
	FieldName   UniqueField = "tenant_name"
	FieldDomain UniqueField = "domain"
	FieldEmail  UniqueField = "email"
	FieldPhone  UniqueField = "phone_no"
)

// Repository persists tenants and their addresses. Every method joins the
// transaction carried by ctx, if any.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)
	FindByName(ctx context.Context, name string) (*Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	ExistsBy(ctx context.Context, field UniqueField, value string) (bool, error)

	// AdvanceStatus moves id from one status to the next and fails with
	// TENANT_STATUS_CONFLICT when the stored status is no longer from.
	AdvanceStatus(ctx context.Context, id kernel.TenantID, from, to Status) error
	SetLoginURL(ctx context.Context, id kernel.TenantID, loginURL string) error

	// Update writes profile fields and addresses. It never touches the
	// name, realm or status.
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, id kernel.TenantID) error
	List(ctx context.Context) ([]*Tenant, error)
}

// TypeRepository reads the tenant type catalogue.
type TypeRepository interface {
	ListTypes(ctx context.Context) ([]TenantType, error)
}
