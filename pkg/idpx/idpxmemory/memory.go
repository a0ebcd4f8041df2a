// Package idpxmemory is an in-process identity provider for development
// and tests. It keeps realms, clients and users in maps, records every call
// and can be told to fail the next invocation of an operation.
package idpxmemory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/secufusion/iamplane/pkg/idpx"
)

type realm struct {
	rep     idpx.Realm
	clients map[string]idpx.Client
	users   map[string]*user
}

type user struct {
	rep        idpx.User
	password   string
	temporary  bool
	actions    []string
	realmAdmin bool
}

// Provider implements idpx.AdminClient.
type Provider struct {
	mu     sync.Mutex
	open   bool
	realms map[string]*realm
	faults map[string][]error
	calls  []string
}

var _ idpx.AdminClient = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		realms: make(map[string]*realm),
		faults: make(map[string][]error),
	}
}

// FailNext makes the next call of op return err. Calls queue up.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[op] = append(p.faults[op], err)
}

// Calls returns the operations invoked so far, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CountCalls returns how often op was invoked.
func (p *Provider) CountCalls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == op {
			n++
		}
	}
	return n
}

// enter records op and pops an injected fault. Callers hold p.mu.
func (p *Provider) enter(op string) error {
	p.calls = append(p.calls, op)
	if q := p.faults[op]; len(q) > 0 {
		p.faults[op] = q[1:]
		return q[0]
	}
	if !p.open {
		return idpx.ErrSessionFailed(nil).WithDetail("op", op)
	}
	return nil
}

func (p *Provider) lookup(name string) (*realm, bool) {
	for key, r := range p.realms {
		if strings.EqualFold(key, name) {
			return r, true
		}
	}
	return nil, false
}

func (p *Provider) Open(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

func (p *Provider) RealmExists(_ context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpRealmExists); err != nil {
		return false, err
	}
	_, ok := p.lookup(name)
	return ok, nil
}

func (p *Provider) CreateRealm(_ context.Context, rep idpx.Realm) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpCreateRealm); err != nil {
		return err
	}
	if _, ok := p.lookup(rep.Realm); ok {
		return idpx.ErrConflict(idpx.OpCreateRealm)
	}
	p.realms[rep.Realm] = &realm{
		rep:     rep,
		clients: make(map[string]idpx.Client),
		users:   make(map[string]*user),
	}
	return nil
}

func (p *Provider) DeleteRealm(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpDeleteRealm); err != nil {
		return err
	}
	r, ok := p.lookup(name)
	if !ok {
		return idpx.ErrNotFound(idpx.OpDeleteRealm)
	}
	delete(p.realms, r.rep.Realm)
	return nil
}

func (p *Provider) ClientExists(_ context.Context, realmName, clientID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpClientExists); err != nil {
		return false, err
	}
	r, ok := p.lookup(realmName)
	if !ok {
		return false, idpx.ErrNotFound(idpx.OpClientExists)
	}
	for id := range r.clients {
		if strings.EqualFold(id, clientID) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Provider) CreateClient(_ context.Context, realmName string, c idpx.Client) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpCreateClient); err != nil {
		return err
	}
	r, ok := p.lookup(realmName)
	if !ok {
		return idpx.ErrNotFound(idpx.OpCreateClient)
	}
	if _, dup := r.clients[c.ClientID]; dup {
		return idpx.ErrConflict(idpx.OpCreateClient)
	}
	r.clients[c.ClientID] = c
	return nil
}

func (p *Provider) UpdateClientRedirects(_ context.Context, realmName, clientID string, redirectURIs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpUpdateClient); err != nil {
		return err
	}
	r, ok := p.lookup(realmName)
	if !ok {
		return idpx.ErrNotFound(idpx.OpUpdateClient)
	}
	for id, c := range r.clients {
		if strings.EqualFold(id, clientID) {
			c.RedirectURIs = slices.Clone(redirectURIs)
			r.clients[id] = c
			return nil
		}
	}
	return idpx.ErrNotFound(idpx.OpUpdateClient)
}

func (p *Provider) FindUserByUsername(_ context.Context, realmName, username string) ([]idpx.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpFindUser); err != nil {
		return nil, err
	}
	r, ok := p.lookup(realmName)
	if !ok {
		return nil, idpx.ErrNotFound(idpx.OpFindUser)
	}
	var out []idpx.User
	for _, u := range r.users {
		if strings.EqualFold(u.rep.Username, username) {
			out = append(out, u.rep)
		}
	}
	return out, nil
}

func (p *Provider) CreateUser(_ context.Context, realmName string, rep idpx.User) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(idpx.OpCreateUser); err != nil {
		return "", err
	}
	r, ok := p.lookup(realmName)
	if !ok {
		return "", idpx.ErrNotFound(idpx.OpCreateUser)
	}
	for _, u := range r.users {
		if strings.EqualFold(u.rep.Username, rep.Username) {
			return u.rep.ID, nil
		}
		if rep.Email != "" && strings.EqualFold(u.rep.Email, rep.Email) {
			return "", idpx.ErrConflict(idpx.OpCreateUser)
		}
	}
	rep.ID = uuid.NewString()
	r.users[rep.ID] = &user{rep: rep}
	return rep.ID, nil
}

func (p *Provider) userLocked(op, realmName, userID string) (*user, error) {
	if err := p.enter(op); err != nil {
		return nil, err
	}
	r, ok := p.lookup(realmName)
	if !ok {
		return nil, idpx.ErrNotFound(op)
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, idpx.ErrNotFound(op)
	}
	return u, nil
}

func (p *Provider) UpdateUser(_ context.Context, realmName string, rep idpx.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.userLocked(idpx.OpUpdateUser, realmName, rep.ID)
	if err != nil {
		return err
	}
	u.rep = rep
	return nil
}

func (p *Provider) RemoveUser(_ context.Context, realmName, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.userLocked(idpx.OpRemoveUser, realmName, userID); err != nil {
		return err
	}
	r, _ := p.lookup(realmName)
	delete(r.users, userID)
	return nil
}

func (p *Provider) SetPassword(_ context.Context, realmName, userID, password string, temporary bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.userLocked(idpx.OpSetPassword, realmName, userID)
	if err != nil {
		return err
	}
	u.password, u.temporary = password, temporary
	return nil
}

func (p *Provider) SendRequiredActionEmail(_ context.Context, realmName, userID string, actions []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.userLocked(idpx.OpRequiredActionEmail, realmName, userID)
	if err != nil {
		return err
	}
	u.actions = slices.Clone(actions)
	return nil
}

func (p *Provider) AssignRealmAdminRole(_ context.Context, realmName, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, err := p.userLocked(idpx.OpAssignRealmAdmin, realmName, userID)
	if err != nil {
		return err
	}
	u.realmAdmin = true
	return nil
}

// Snapshot is a read-only view of one realm for assertions.
type Snapshot struct {
	Realm   idpx.Realm
	Clients []idpx.Client
	Users   []UserSnapshot
}

type UserSnapshot struct {
	User        idpx.User
	HasPassword bool
	Temporary   bool
	Actions     []string
	RealmAdmin  bool
}

// Realm returns a snapshot of the named realm.
func (p *Provider) Realm(name string) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.lookup(name)
	if !ok {
		return Snapshot{}, false
	}
	s := Snapshot{Realm: r.rep}
	for _, c := range r.clients {
		s.Clients = append(s.Clients, c)
	}
	for _, u := range r.users {
		s.Users = append(s.Users, UserSnapshot{
			User:        u.rep,
			HasPassword: u.password != "",
			Temporary:   u.temporary,
			Actions:     slices.Clone(u.actions),
			RealmAdmin:  u.realmAdmin,
		})
	}
	return s, true
}

// RealmCount returns how many realms exist.
func (p *Provider) RealmCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.realms)
}
