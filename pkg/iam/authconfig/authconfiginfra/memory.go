package authconfiginfra

import (
	"context"
	"sort"
	"sync"

	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

// MemoryConfigRepository keeps configs in process and undoes its writes when
// the surrounding txx unit of work rolls back.
type MemoryConfigRepository struct {
	mu       sync.RWMutex
	configs  map[kernel.TenantID]authconfig.Config
	failNext error
}

func NewMemoryConfigRepository() *MemoryConfigRepository {
	return &MemoryConfigRepository{configs: make(map[kernel.TenantID]authconfig.Config)}
}

// FailNextCreate makes the next Create return err.
func (r *MemoryConfigRepository) FailNextCreate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryConfigRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}

// Put stores c as is. Tests use it to seed a state.
func (r *MemoryConfigRepository) Put(c *authconfig.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[c.TenantID] = *c
}

func (r *MemoryConfigRepository) Create(ctx context.Context, c *authconfig.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	if _, ok := r.configs[c.TenantID]; ok {
		return authconfig.ErrConfigExists().WithDetail("tenant_id", c.TenantID.String())
	}
	r.configs[c.TenantID] = *c
	txx.OnRollback(ctx, "memory_config_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.configs, c.TenantID)
		return nil
	})
	return nil
}

func (r *MemoryConfigRepository) FindByTenant(_ context.Context, tenantID kernel.TenantID) (*authconfig.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[tenantID]
	if !ok {
		return nil, authconfig.ErrConfigNotFound()
	}
	return &c, nil
}

func (r *MemoryConfigRepository) ExistsForTenant(_ context.Context, tenantID kernel.TenantID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.configs[tenantID]
	return ok, nil
}

func (r *MemoryConfigRepository) List(context.Context) ([]*authconfig.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*authconfig.Config, 0, len(r.configs))
	for _, c := range r.configs {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConfigRepository) UpdateURLs(ctx context.Context, tenantID kernel.TenantID, redirectURI, loginURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.configs[tenantID]
	if !ok {
		return authconfig.ErrConfigNotFound()
	}
	next := prev
	next.RedirectURI = redirectURI
	next.LoginURL = loginURL
	r.configs[tenantID] = next
	txx.OnRollback(ctx, "memory_config_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.configs[tenantID] = prev
		return nil
	})
	return nil
}

func (r *MemoryConfigRepository) DeleteByTenant(ctx context.Context, tenantID kernel.TenantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.configs[tenantID]
	if !ok {
		return nil
	}
	delete(r.configs, tenantID)
	txx.OnRollback(ctx, "memory_config_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.configs[tenantID] = prev
		return nil
	})
	return nil
}
