package tenant

import (
	"time"

	"github.com/secufusion/iamplane/pkg/kernel"
)

// ============================================================================
// Status
// ============================================================================

// Status is the provisioning state persisted on a tenant. It only moves
// forward along the order of Statuses.
type Status string

const (
	StatusCreating      Status = "CREATING"
	StatusCreatedLocal  Status = "CREATED_LOCAL"
	StatusRealmCreated  Status = "REALM_CREATED"
	StatusClientCreated Status = "CLIENT_CREATED"
	StatusUserCreated   Status = "USER_CREATED"
	StatusActive        Status = "ACTIVE"
)

// Statuses lists every provisioning state in order.
var Statuses = []Status{
	StatusCreating,
	StatusCreatedLocal,
	StatusRealmCreated,
	StatusClientCreated,
	StatusUserCreated,
	StatusActive,
}

// Rank is the position of s in the provisioning order, or -1 when unknown.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Status) IsValid() bool { return s.Rank() >= 0 }

func (s Status) String() string { return string(s) }

// ============================================================================
// Entity
// ============================================================================

// Address is owned by exactly one tenant slot and deleted with it.
type Address struct {
	ID           int64  `json:"-"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	PostalCode   string `json:"postalCode"`
}

// Tenant is an administrative customer owning one IdP realm. Name, RealmName
// and the OIDC client id are always the same value.
type Tenant struct {
	ID               kernel.TenantID
	Name             string
	RealmName        string
	Domain           string
	Email            string
	Region           string
	PhoneNo          string
	TenantType       string
	Industry         string
	BillingCycleType string
	TemporaryAddress *Address
	PermanentAddress *Address
	BillingAddress   *Address
	Status           Status
	LoginURL         string
	ParentTenantID   *kernel.TenantID
	CreatedBy        string
	UpdatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Addresses returns the three address slots in storage order.
func (t *Tenant) Addresses() map[string]*Address {
	return map[string]*Address{
		AddressTemporary: t.TemporaryAddress,
		AddressPermanent: t.PermanentAddress,
		AddressBilling:   t.BillingAddress,
	}
}

// Address slot names, stored in addresses.kind.
const (
	AddressTemporary = "temporary"
	AddressPermanent = "permanent"
	AddressBilling   = "billing"
)

// ToResponse projects the tenant onto its public shape.
func (t *Tenant) ToResponse() TenantResponse {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return TenantResponse{
		TenantID:   t.ID,
		TenantName: t.Name,
		RealmName:  t.RealmName,
		Domain:     t.Domain,
		Region:     t.Region,
		PhoneNo:    t.PhoneNo,
		TenantType: t.TenantType,
		Industry:   t.Industry,
		Status:     t.Status,
		CreatedAt:  createdAt,
		LoginURL:   t.LoginURL,
	}
}

// TenantType is a row of the tenant_types lookup table.
type TenantType struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// BillingType is one of the fixed billing cycles offered to tenants.
type BillingType struct {
	ID          int    `json:"id"`
	BillingType string `json:"billingType"`
}

// BillingTypes is the static billing catalogue.
var BillingTypes = []BillingType{
	{ID: 1, BillingType: "Trial"},
	{ID: 2, BillingType: "Monthly"},
	{ID: 3, BillingType: "Quarterly"},
	{ID: 4, BillingType: "Yearly"},
}
