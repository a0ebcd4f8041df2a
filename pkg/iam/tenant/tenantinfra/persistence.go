package tenantinfra

import (
	"time"

	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/ptrx"
)

type tenantPersistence struct {
	ID               string    `db:"tenant_id"`
	Name             string    `db:"tenant_name"`
	RealmName        string    `db:"realm_name"`
	Domain           string    `db:"domain"`
	Email            string    `db:"email"`
	Region           string    `db:"region"`
	PhoneNo          string    `db:"phone_no"`
	TenantType       string    `db:"tenant_type"`
	Industry         string    `db:"industry"`
	BillingCycleType string    `db:"billing_cycle_type"`
	Status           string    `db:"status"`
	LoginURL         string    `db:"login_url"`
	ParentTenantID   *string   `db:"parent_tenant_id"`
	CreatedBy        string    `db:"created_by"`
	UpdatedBy        string    `db:"updated_by"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type addressPersistence struct {
	ID           int64  `db:"id"`
	TenantID     string `db:"tenant_id"`
	Kind         string `db:"kind"`
	AddressLine1 string `db:"address_line1"`
	AddressLine2 string `db:"address_line2"`
	City         string `db:"city"`
	State        string `db:"state"`
	Country      string `db:"country"`
	PostalCode   string `db:"postal_code"`
}

func toPersistence(t *tenant.Tenant) tenantPersistence {
	p := tenantPersistence{
		ID:               t.ID.String(),
		Name:             t.Name,
		RealmName:        t.RealmName,
		Domain:           t.Domain,
		Email:            t.Email,
		Region:           t.Region,
		PhoneNo:          t.PhoneNo,
		TenantType:       t.TenantType,
		Industry:         t.Industry,
		BillingCycleType: t.BillingCycleType,
		Status:           string(t.Status),
		LoginURL:         t.LoginURL,
		ParentTenantID:   ptrx.NonZero(ptrx.Value(t.ParentTenantID).String()),
		CreatedBy:        t.CreatedBy,
		UpdatedBy:        t.UpdatedBy,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	return p
}

func (p tenantPersistence) toDomain() *tenant.Tenant {
	t := &tenant.Tenant{
		ID:               kernel.TenantID(p.ID),
		Name:             p.Name,
		RealmName:        p.RealmName,
		Domain:           p.Domain,
		Email:            p.Email,
		Region:           p.Region,
		PhoneNo:          p.PhoneNo,
		TenantType:       p.TenantType,
		Industry:         p.Industry,
		BillingCycleType: p.BillingCycleType,
		Status:           tenant.Status(p.Status),
		LoginURL:         p.LoginURL,
		CreatedBy:        p.CreatedBy,
		UpdatedBy:        p.UpdatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.ParentTenantID != nil {
		t.ParentTenantID = ptrx.Of(kernel.TenantID(*p.ParentTenantID))
	}
	return t
}

func toAddressPersistence(id kernel.TenantID, kind string, a *tenant.Address) addressPersistence {
	return addressPersistence{
		TenantID:     id.String(),
		Kind:         kind,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Country:      a.Country,
		PostalCode:   a.PostalCode,
	}
}

func attachAddresses(t *tenant.Tenant, rows []addressPersistence) {
	for _, row := range rows {
		a := &tenant.Address{
			ID:           row.ID,
			AddressLine1: row.AddressLine1,
			AddressLine2: row.AddressLine2,
			City:         row.City,
			State:        row.State,
			Country:      row.Country,
			PostalCode:   row.PostalCode,
		}
		switch row.Kind {
		case tenant.AddressTemporary:
			t.TemporaryAddress = a
		case tenant.AddressPermanent:
			t.PermanentAddress = a
		case tenant.AddressBilling:
			t.BillingAddress = a
		}
	}
}
