package tenant

import (
	"strings"
	"time"

	"github.com/secufusion/iamplane/pkg/kernel"
)

// AddressRequest is the address shape accepted on create and update.
type AddressRequest struct {
	AddressLine1 string `json:"addressLine1" validate:"max=255"`
	AddressLine2 string `json:"addressLine2" validate:"max=255"`
	City         string `json:"city" validate:"max=100"`
	State        string `json:"state" validate:"max=100"`
	Country      string `json:"country" validate:"max=100"`
	PostalCode   string `json:"postalCode" validate:"max=20"`
}

func (a *AddressRequest) toAddress() *Address {
	if a == nil {
		return nil
	}
	return &Address{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Country:      a.Country,
		PostalCode:   a.PostalCode,
	}
}

func addressRequest(a *Address) *AddressRequest {
	if a == nil {
		return nil
	}
	return &AddressRequest{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Country:      a.Country,
		PostalCode:   a.PostalCode,
	}
}

// CreateTenantRequest carries a new tenant and its first administrator.
// Required fields are checked by the provisioner, in a fixed order, so
// callers get the numbered error for the first missing one.
type CreateTenantRequest struct {
	TenantName       string          `json:"tenantName" validate:"max=64"`
	Email            string          `json:"email" validate:"omitempty,email"`
	Domain           string          `json:"domain" validate:"max=253"`
	Region           string          `json:"region"`
	PhoneNo          string          `json:"phoneNo" validate:"max=32"`
	TenantType       string          `json:"tenantType"`
	Industry         string          `json:"industry"`
	BillingCycleType string          `json:"billingCycleType"`
	ParentTenantID   string          `json:"parentTenantId,omitempty"`
	TemporaryAddress *AddressRequest `json:"temporaryAddress"`
	PermanentAddress *AddressRequest `json:"permanentAddress"`
	BillingAddress   *AddressRequest `json:"billingAddress"`

	AdminFirstName   string `json:"adminFirstName" validate:"max=100"`
	AdminLastName    string `json:"adminLastName" validate:"max=100"`
	AdminUserName    string `json:"adminUserName" validate:"max=64"`
	AdminPhoneNumber string `json:"adminPhoneNumber" validate:"max=32"`
	AdminEmail       string `json:"adminEmail" validate:"omitempty,email"`
	AdminPassword    string `json:"adminPassword"`
}

// Trimmed returns a copy with surrounding whitespace removed from the
// identifying fields.
func (r CreateTenantRequest) Trimmed() CreateTenantRequest {
	r.TenantName = strings.TrimSpace(r.TenantName)
	r.Email = strings.TrimSpace(r.Email)
	r.Domain = strings.TrimSpace(r.Domain)
	r.PhoneNo = strings.TrimSpace(r.PhoneNo)
	r.AdminEmail = strings.TrimSpace(r.AdminEmail)
	r.AdminPhoneNumber = strings.TrimSpace(r.AdminPhoneNumber)
	r.AdminUserName = strings.ToLower(strings.TrimSpace(r.AdminUserName))
	return r
}

// ApplyTo copies the mutable profile fields onto t. Name, domain and status
// are handled by the caller.
func (r CreateTenantRequest) ApplyTo(t *Tenant) {
	t.Email = r.Email
	t.Region = r.Region
	t.PhoneNo = r.PhoneNo
	t.TenantType = r.TenantType
	t.Industry = r.Industry
	t.BillingCycleType = r.BillingCycleType
	t.TemporaryAddress = r.TemporaryAddress.toAddress()
	t.PermanentAddress = r.PermanentAddress.toAddress()
	t.BillingAddress = r.BillingAddress.toAddress()
	if r.ParentTenantID != "" {
		parent := kernel.TenantID(r.ParentTenantID)
		t.ParentTenantID = &parent
	}
}

// RequestFrom rebuilds the request that would provision t again. Admin
// fields are filled in by the caller from the default user.
func RequestFrom(t *Tenant) CreateTenantRequest {
	r := CreateTenantRequest{
		TenantName:       t.Name,
		Email:            t.Email,
		Domain:           t.Domain,
		Region:           t.Region,
		PhoneNo:          t.PhoneNo,
		TenantType:       t.TenantType,
		Industry:         t.Industry,
		BillingCycleType: t.BillingCycleType,
		TemporaryAddress: addressRequest(t.TemporaryAddress),
		PermanentAddress: addressRequest(t.PermanentAddress),
		BillingAddress:   addressRequest(t.BillingAddress),
	}
	if t.ParentTenantID != nil {
		r.ParentTenantID = t.ParentTenantID.String()
	}
	return r
}

// TenantResponse is the public projection of a tenant.
type TenantResponse struct {
	TenantID   kernel.TenantID `json:"tenantID"`
	TenantName string          `json:"tenantName"`
	RealmName  string          `json:"realmName"`
	Domain     string          `json:"domain"`
	Region     string          `json:"region"`
	PhoneNo    string          `json:"phoneNo"`
	TenantType string          `json:"tenantType"`
	Industry   string          `json:"industry"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	LoginURL   string          `json:"loginUrl"`
}

// Node is one tenant in the hierarchy returned by the list endpoint.
type Node struct {
	TenantResponse
	ParentTenantID *kernel.TenantID `json:"parentTenantId"`
	Children       []*Node          `json:"children"`
}

// Hierarchy nests tenants under their parents. Tenants whose parent is
// unknown are treated as roots. Input order is preserved at every level.
func Hierarchy(tenants []*Tenant) []*Node {
	nodes := make(map[kernel.TenantID]*Node, len(tenants))
	for _, t := range tenants {
		nodes[t.ID] = &Node{TenantResponse: t.ToResponse(), ParentTenantID: t.ParentTenantID, Children: []*Node{}}
	}

	roots := []*Node{}
	for _, t := range tenants {
		n := nodes[t.ID]
		if t.ParentTenantID != nil {
			if parent, ok := nodes[*t.ParentTenantID]; ok && parent != n {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// CheckRequest selects one availability probe; the first non-empty field wins.
type CheckRequest struct {
	TenantName  string `query:"tenantName"`
	DomainName  string `query:"domainName"`
	PhoneNumber string `query:"phoneNumber"`
	TenantEmail string `query:"tenantEmail"`
}

func (c CheckRequest) Empty() bool {
	return c.TenantName == "" && c.DomainName == "" && c.PhoneNumber == "" && c.TenantEmail == ""
}
