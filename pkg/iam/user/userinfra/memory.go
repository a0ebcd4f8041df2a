package userinfra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

// MemoryUserRepository keeps users in process and undoes its writes when
// the surrounding txx unit of work rolls back.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[kernel.UserID]user.User
	fail  map[string]error
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[kernel.UserID]user.User),
		fail:  make(map[string]error),
	}
}

// Memory repository operation names for FailNext.
const (
	OpCreate     = "create"
	OpLinkRemote = "link_remote"
	OpExistsBy   = "exists_by"
	OpUpdate     = "update"
	OpDelete     = "delete"
)

// FailNext makes the next call of op return err.
func (r *MemoryUserRepository) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

func (r *MemoryUserRepository) injected(op string) error {
	if err, ok := r.fail[op]; ok {
		delete(r.fail, op)
		return err
	}
	return nil
}

// Count is the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Put stores u as is. Tests use it to seed a state.
func (r *MemoryUserRepository) Put(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
}

func (r *MemoryUserRepository) snapshot(ctx context.Context, id kernel.UserID) {
	prev, existed := r.users[id]
	txx.OnRollback(ctx, "memory_user_undo", func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if existed {
			r.users[id] = prev
		} else {
			delete(r.users, id)
		}
		return nil
	})
}

func (r *MemoryUserRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpCreate); err != nil {
		return err
	}
	if err := r.uniqueLocked(u); err != nil {
		return err
	}
	r.snapshot(ctx, u.ID)
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepository) uniqueLocked(u *user.User) error {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		switch {
		case other.UserName == u.UserName:
			return user.ErrUserNameExists()
		case other.Email == u.Email:
			return user.ErrEmailExists()
		case other.PhoneNo == u.PhoneNo:
			return user.ErrPhoneExists()
		}
	}
	return nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpUpdate); err != nil {
		return err
	}
	stored, ok := r.users[u.ID]
	if !ok {
		return user.ErrUserNotFound()
	}
	if err := r.uniqueLocked(u); err != nil {
		return err
	}
	r.snapshot(ctx, u.ID)
	stored.UserName = u.UserName
	stored.Email = u.Email
	stored.PhoneNo = u.PhoneNo
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = stored
	return nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id kernel.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpDelete); err != nil {
		return err
	}
	if _, ok := r.users[id]; !ok {
		return user.ErrUserNotFound()
	}
	r.snapshot(ctx, id)
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) List(context.Context) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].UserName < out[j].UserName
	})
	return out, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrUserNotFound()
	}
	return &u, nil
}

func (r *MemoryUserRepository) FindByUserName(_ context.Context, userName string) (*user.User, error) {
	return r.findBy(func(u *user.User) bool { return u.UserName == userName })
}

func (r *MemoryUserRepository) FindDefaultByTenant(_ context.Context, tenantID kernel.TenantID) (*user.User, error) {
	return r.findBy(func(u *user.User) bool { return u.TenantID == tenantID && u.DefaultUser })
}

func (r *MemoryUserRepository) findBy(match func(*user.User) bool) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound()
}

func (r *MemoryUserRepository) ExistsBy(_ context.Context, field user.UniqueField, value string) (bool, error) {
	r.mu.Lock()
	err := r.injected(OpExistsBy)
	r.mu.Unlock()
	if err != nil {
		return false, err
	}

	var match func(*user.User) bool
	switch field {
	case user.FieldUserName:
		match = func(u *user.User) bool { return u.UserName == value }
	case user.FieldEmail:
		match = func(u *user.User) bool { return u.Email == value }
	case user.FieldPhone:
		match = func(u *user.User) bool { return u.PhoneNo == value }
	default:
		return false, errx.Internal("unknown user field").WithDetail("field", string(field))
	}
	_, err = r.findBy(match)
	if errx.HasCode(err, user.CodeUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *MemoryUserRepository) ListByTenant(_ context.Context, tenantID kernel.TenantID) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*user.User{}
	for _, u := range r.users {
		if u.TenantID == tenantID {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DefaultUser != out[j].DefaultUser {
			return out[i].DefaultUser
		}
		return out[i].UserName < out[j].UserName
	})
	return out, nil
}

func (r *MemoryUserRepository) LinkRemote(ctx context.Context, id kernel.UserID, keycloakUserID string, status user.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.injected(OpLinkRemote); err != nil {
		return err
	}
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	r.snapshot(ctx, id)
	u.KeycloakUserID = keycloakUserID
	u.Status = status
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepository) DeleteByTenant(ctx context.Context, tenantID kernel.TenantID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.users {
		if u.TenantID == tenantID {
			r.snapshot(ctx, id)
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}
