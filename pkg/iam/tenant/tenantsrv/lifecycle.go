package tenantsrv

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
)

// Event is a provisioning transition.
type Event string

const (
	EventPersistLocal Event = "persist_local"
	EventCreateRealm  Event = "create_realm"
	EventCreateClient Event = "create_client"
	EventCreateUser   Event = "create_user"
	EventActivate     Event = "activate"
)

func (e Event) String() string { return string(e) }

type transition struct {
	event Event
	src   []tenant.Status
	dst   tenant.Status
}

var transitions = []transition{
	{EventPersistLocal, []tenant.Status{tenant.StatusCreating}, tenant.StatusCreatedLocal},
	{EventCreateRealm, []tenant.Status{tenant.StatusCreating, tenant.StatusCreatedLocal}, tenant.StatusRealmCreated},
	{EventCreateClient, []tenant.Status{tenant.StatusRealmCreated}, tenant.StatusClientCreated},
	{EventCreateUser, []tenant.Status{tenant.StatusClientCreated}, tenant.StatusUserCreated},
	{EventActivate, []tenant.Status{tenant.StatusUserCreated}, tenant.StatusActive},
}

// destination is the status event leads to.
func destination(event Event) tenant.Status {
	for _, t := range transitions {
		if t.event == event {
			return t.dst
		}
	}
	return ""
}

// lifecycle mirrors the persisted status of one tenant in a state machine.
// The repository stays the source of truth: the machine only moves after the
// guarded status update has been stored.
type lifecycle struct {
	tenant  *tenant.Tenant
	machine *fsm.FSM
}

func newLifecycle(t *tenant.Tenant) *lifecycle {
	events := make(fsm.Events, 0, len(transitions))
	for _, tr := range transitions {
		src := make([]string, len(tr.src))
		for i, s := range tr.src {
			src[i] = s.String()
		}
		events = append(events, fsm.EventDesc{
			Name: tr.event.String(),
			Src:  src,
			Dst:  tr.dst.String(),
		})
	}

	return &lifecycle{
		tenant:  t,
		machine: fsm.NewFSM(t.Status.String(), events, fsm.Callbacks{}),
	}
}

func (l *lifecycle) Current() tenant.Status {
	return tenant.Status(l.machine.Current())
}

func (l *lifecycle) Can(event Event) bool {
	return l.machine.Can(event.String())
}

// Fire moves the machine and the tenant to the destination of event.
func (l *lifecycle) Fire(ctx context.Context, event Event) error {
	if err := l.machine.Event(ctx, event.String()); err != nil {
		return err
	}
	l.tenant.Status = l.Current()
	return nil
}

// Next is the event that moves the tenant on from its current status.
func (l *lifecycle) Next() (Event, bool) {
	switch l.Current() {
	case tenant.StatusCreating, tenant.StatusCreatedLocal:
		return EventCreateRealm, true
	case tenant.StatusRealmCreated:
		return EventCreateClient, true
	case tenant.StatusClientCreated:
		return EventCreateUser, true
	case tenant.StatusUserCreated:
		return EventActivate, true
	}
	return "", false
}
