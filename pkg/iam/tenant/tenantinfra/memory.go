package tenantinfra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/ptrx"
	"github.com/secufusion/iamplane/pkg/txx"
)

// MemoryTenantRepository keeps tenants in process. Inside a txx unit of
// work every write registers its own undo, so a rollback restores the
// previous rows.
type MemoryTenantRepository struct {
	mu      sync.RWMutex
	tenants map[kernel.TenantID]tenant.Tenant
	types   []tenant.TenantType
	fail    map[string]error
	history map[kernel.TenantID][]tenant.Status
}

var (
	_ tenant.Repository     = (*MemoryTenantRepository)(nil)
	_ tenant.TypeRepository = (*MemoryTenantRepository)(nil)
)

func NewMemoryTenantRepository() *MemoryTenantRepository {
	return &MemoryTenantRepository{
		tenants: make(map[kernel.TenantID]tenant.Tenant),
		types: []tenant.TenantType{
			{ID: 1, Name: "Enterprise"},
			{ID: 2, Name: "SMB"},
			{ID: 3, Name: "Partner"},
		},
		fail:    make(map[string]error),
		history: make(map[kernel.TenantID][]tenant.Status),
	}
}

// Memory repository operation names for FailNext.
const (
	OpCreate        = "create"
	OpAdvanceStatus = "advance_status"
	OpSetLoginURL   = "set_login_url"
	OpUpdate        = "update"
	OpDelete        = "delete"
)

// FailNext makes the next call of op return err.
func (r *MemoryTenantRepository) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

// FailAdvanceTo makes the next status update towards to return err.
func (r *MemoryTenantRepository) FailAdvanceTo(to tenant.Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[OpAdvanceStatus+":"+to.String()] = err
}

// StatusHistory lists every status id has been stored with, in order.
func (r *MemoryTenantRepository) StatusHistory(id kernel.TenantID) []tenant.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]tenant.Status(nil), r.history[id]...)
}

// Count is the number of stored tenants.
func (r *MemoryTenantRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}

// Put stores t as is, bypassing checks. Tests use it to seed a state.
func (r *MemoryTenantRepository) Put(t *tenant.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = *t
	r.history[t.ID] = append(r.history[t.ID], t.Status)
}

func (r *MemoryTenantRepository) injected(op string) error {
	if err, ok := r.fail[op]; ok {
		delete(r.fail, op)
		return err
	}
	return nil
}

// snapshot registers a rollback hook restoring id to its current row.
func (r *MemoryTenantRepository) snapshot(ctx context.Context, id kernel.TenantID) {
	prev, existed := r.tenants[id]
	prevHistory := len(r.history[id])
	txx.OnRollback(ctx, "memory_tenant_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.tenants[id] = prev
		} else {
			delete(r.tenants, id)
		}
		if h := r.history[id]; len(h) > prevHistory {
			r.history[id] = h[:prevHistory]
		}
		return nil
	})
}

func (r *MemoryTenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpCreate); err != nil {
		return err
	}
	if err := r.uniqueLocked(t); err != nil {
		return err
	}
	r.snapshot(ctx, t.ID)
	r.tenants[t.ID] = *cloneTenant(t)
	r.history[t.ID] = append(r.history[t.ID], t.Status)
	return nil
}

func (r *MemoryTenantRepository) uniqueLocked(t *tenant.Tenant) error {
	for id, other := range r.tenants {
		if id == t.ID {
			continue
		}
		switch {
		case other.Name == t.Name:
			return tenant.ErrNameExists()
		case other.Domain == t.Domain:
			return tenant.ErrDomainExists()
		case other.Email == t.Email:
			return tenant.ErrEmailExists()
		case other.PhoneNo == t.PhoneNo:
			return tenant.ErrPhoneExists()
		}
	}
	return nil
}

func (r *MemoryTenantRepository) FindByID(_ context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound()
	}
	return cloneTenant(&t), nil
}

func (r *MemoryTenantRepository) FindByName(_ context.Context, name string) (*tenant.Tenant, error) {
	return r.findBy(func(t *tenant.Tenant) bool { return t.Name == name })
}

func (r *MemoryTenantRepository) FindByDomain(_ context.Context, domain string) (*tenant.Tenant, error) {
	return r.findBy(func(t *tenant.Tenant) bool { return t.Domain == domain })
}

func (r *MemoryTenantRepository) findBy(match func(*tenant.Tenant) bool) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if match(&t) {
			return cloneTenant(&t), nil
		}
	}
	return nil, tenant.ErrTenantNotFound()
}

func (r *MemoryTenantRepository) ExistsBy(_ context.Context, field tenant.UniqueField, value string) (bool, error) {
	var match func(*tenant.Tenant) bool
	switch field {
	case tenant.FieldName:
		match = func(t *tenant.Tenant) bool { return t.Name == value }
	case tenant.FieldDomain:
		match = func(t *tenant.Tenant) bool { return t.Domain == value }
	case tenant.FieldEmail:
		match = func(t *tenant.Tenant) bool { return t.Email == value }
	case tenant.FieldPhone:
		match = func(t *tenant.Tenant) bool { return t.PhoneNo == value }
	default:
		return false, errx.Internal("unknown tenant field").WithDetail("field", string(field))
	}
	_, err := r.findBy(match)
	if errx.HasCode(err, tenant.CodeTenantNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *MemoryTenantRepository) AdvanceStatus(ctx context.Context, id kernel.TenantID, from, to tenant.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpAdvanceStatus); err != nil {
		return err
	}
	if err := r.injected(OpAdvanceStatus + ":" + to.String()); err != nil {
		return err
	}
	t, ok := r.tenants[id]
	if !ok || t.Status != from {
		return tenant.ErrStatusConflict(from, to).WithDetail("tenant_id", id.String())
	}
	r.snapshot(ctx, id)
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	r.tenants[id] = t
	r.history[id] = append(r.history[id], to)
	return nil
}

func (r *MemoryTenantRepository) SetLoginURL(ctx context.Context, id kernel.TenantID, loginURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpSetLoginURL); err != nil {
		return err
	}
	t, ok := r.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound()
	}
	r.snapshot(ctx, id)
	t.LoginURL = loginURL
	r.tenants[id] = t
	return nil
}

func (r *MemoryTenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpUpdate); err != nil {
		return err
	}
	stored, ok := r.tenants[t.ID]
	if !ok {
		return tenant.ErrTenantNotFound()
	}
	if err := r.uniqueLocked(t); err != nil {
		return err
	}
	r.snapshot(ctx, t.ID)
	next := *cloneTenant(t)
	next.Name = stored.Name
	next.RealmName = stored.RealmName
	next.Status = stored.Status
	next.LoginURL = stored.LoginURL
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.tenants[t.ID] = next
	return nil
}

func (r *MemoryTenantRepository) Delete(ctx context.Context, id kernel.TenantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpDelete); err != nil {
		return err
	}
	if _, ok := r.tenants[id]; !ok {
		return tenant.ErrTenantNotFound()
	}
	r.snapshot(ctx, id)
	delete(r.tenants, id)
	return nil
}

func (r *MemoryTenantRepository) List(_ context.Context) ([]*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*tenant.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, cloneTenant(&t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryTenantRepository) ListTypes(context.Context) ([]tenant.TenantType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]tenant.TenantType(nil), r.types...), nil
}

func cloneTenant(t *tenant.Tenant) *tenant.Tenant {
	c := *t
	c.TemporaryAddress = cloneAddress(t.TemporaryAddress)
	c.PermanentAddress = cloneAddress(t.PermanentAddress)
	c.BillingAddress = cloneAddress(t.BillingAddress)
	if t.ParentTenantID != nil {
		c.ParentTenantID = ptrx.Of(*t.ParentTenantID)
	}
	return &c
}

func cloneAddress(a *tenant.Address) *tenant.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
