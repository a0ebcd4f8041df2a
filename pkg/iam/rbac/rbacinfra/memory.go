package rbacinfra

import (
	"context"
	"sync"

	"github.com/secufusion/iamplane/pkg/iam/rbac"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

type binding[A, B comparable] struct {
	a A
	b B
}

// MemoryRBACRepository keeps groups and roles in process and undoes its
// writes when the surrounding txx unit of work rolls back.
type MemoryRBACRepository struct {
	mu         sync.RWMutex
	roles      map[kernel.RoleID]rbac.Role
	groups     map[kernel.GroupID]rbac.Group
	groupRoles map[binding[kernel.GroupID, kernel.RoleID]]struct{}
	members    map[binding[kernel.GroupID, kernel.UserID]]struct{}
}

func NewMemoryRBACRepository() *MemoryRBACRepository {
	return &MemoryRBACRepository{
		roles:      make(map[kernel.RoleID]rbac.Role),
		groups:     make(map[kernel.GroupID]rbac.Group),
		groupRoles: make(map[binding[kernel.GroupID, kernel.RoleID]]struct{}),
		members:    make(map[binding[kernel.GroupID, kernel.UserID]]struct{}),
	}
}

func (r *MemoryRBACRepository) FindRoleByName(_ context.Context, tenantID kernel.TenantID, name string) (*rbac.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, role := range r.roles {
		if role.TenantID == tenantID && role.Name == name {
			return &role, nil
		}
	}
	return nil, rbac.ErrRoleNotFound()
}

func (r *MemoryRBACRepository) CreateRole(ctx context.Context, role *rbac.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ID] = *role
	txx.OnRollback(ctx, "memory_role_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.roles, role.ID)
		return nil
	})
	return nil
}

func (r *MemoryRBACRepository) FindAdminGroup(_ context.Context, tenantID kernel.TenantID) (*rbac.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.TenantID == tenantID && g.IsAdmin && g.IsDefault {
			return &g, nil
		}
	}
	return nil, rbac.ErrGroupNotFound()
}

func (r *MemoryRBACRepository) CreateGroup(ctx context.Context, g *rbac.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = *g
	txx.OnRollback(ctx, "memory_group_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.groups, g.ID)
		return nil
	})
	return nil
}

func (r *MemoryRBACRepository) AssignRoleToGroup(ctx context.Context, groupID kernel.GroupID, roleID kernel.RoleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := binding[kernel.GroupID, kernel.RoleID]{groupID, roleID}
	if _, ok := r.groupRoles[key]; ok {
		return nil
	}
	r.groupRoles[key] = struct{}{}
	txx.OnRollback(ctx, "memory_group_role_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.groupRoles, key)
		return nil
	})
	return nil
}

func (r *MemoryRBACRepository) AddUserToGroup(ctx context.Context, groupID kernel.GroupID, userID kernel.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := binding[kernel.GroupID, kernel.UserID]{groupID, userID}
	if _, ok := r.members[key]; ok {
		return nil
	}
	r.members[key] = struct{}{}
	txx.OnRollback(ctx, "memory_member_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.members, key)
		return nil
	})
	return nil
}

func (r *MemoryRBACRepository) GroupRoles(_ context.Context, groupID kernel.GroupID) ([]kernel.RoleID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := []kernel.RoleID{}
	for k := range r.groupRoles {
		if k.a == groupID {
			ids = append(ids, k.b)
		}
	}
	return ids, nil
}

func (r *MemoryRBACRepository) GroupMembers(_ context.Context, groupID kernel.GroupID) ([]kernel.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := []kernel.UserID{}
	for k := range r.members {
		if k.a == groupID {
			ids = append(ids, k.b)
		}
	}
	return ids, nil
}

// DeleteTenant drops everything owned by tenantID, mirroring the cascade
// of the relational store.
func (r *MemoryRBACRepository) DeleteTenant(tenantID kernel.TenantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, g := range r.groups {
		if g.TenantID != tenantID {
			continue
		}
		for k := range r.groupRoles {
			if k.a == id {
				delete(r.groupRoles, k)
			}
		}
		for k := range r.members {
			if k.a == id {
				delete(r.members, k)
			}
		}
		delete(r.groups, id)
	}
	for id, role := range r.roles {
		if role.TenantID == tenantID {
			delete(r.roles, id)
		}
	}
}
