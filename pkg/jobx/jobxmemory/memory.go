package jobxmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/secufusion/iamplane/pkg/jobx"
)

type scheduled struct {
	id string
	at time.Time
}

// Queue is an in-process jobx.Queue used when Redis is disabled and in tests.
// Jobs do not survive a restart.
type Queue struct {
	mu        sync.Mutex
	jobs      map[string]*jobx.Info
	ready     map[string][]string
	scheduled map[string][]scheduled
	signal    chan struct{}
}

func New() *Queue {
	return &Queue{
		jobs:      make(map[string]*jobx.Info),
		ready:     make(map[string][]string),
		scheduled: make(map[string][]scheduled),
		signal:    make(chan struct{}, 1),
	}
}

func (q *Queue) Put(_ context.Context, job jobx.Job, at time.Time) (string, error) {
	now := time.Now().UTC()
	info := &jobx.Info{
		ID:          uuid.NewString(),
		Type:        job.Type,
		Queue:       job.Queue,
		Payload:     job.Payload,
		Status:      jobx.StatusPending,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[info.ID] = info
	if at.After(now) {
		q.schedule(info.Queue, info.ID, at)
	} else {
		q.push(info.Queue, info.ID)
	}
	return info.ID, nil
}

func (q *Queue) Get(_ context.Context, id string) (*jobx.Info, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.jobs[id]
	if !ok {
		return nil, jobx.ErrJobNotFound(id)
	}
	cp := *info
	return &cp, nil
}

func (q *Queue) Take(ctx context.Context, queues []string, timeout time.Duration) (*jobx.Info, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if info := q.pop(queues); info != nil {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-deadline.C:
			return nil, nil
		case <-q.signal:
		}
	}
}

func (q *Queue) Complete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.jobs[id]
	if !ok {
		return jobx.ErrJobNotFound(id)
	}
	info.Status = jobx.StatusCompleted
	info.Error = ""
	info.UpdatedAt = time.Now().UTC()
	return nil
}

func (q *Queue) Fail(_ context.Context, id string, reason string, retryAt time.Time) (*jobx.Info, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.jobs[id]
	if !ok {
		return nil, jobx.ErrJobNotFound(id)
	}

	info.Error = reason
	info.UpdatedAt = time.Now().UTC()
	if retryAt.IsZero() || info.Exhausted() {
		info.Status = jobx.StatusFailed
	} else {
		info.Status = jobx.StatusRetrying
		q.schedule(info.Queue, id, retryAt)
	}
	cp := *info
	return &cp, nil
}

func (q *Queue) Promote(_ context.Context, queues []string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range queues {
		pending := q.scheduled[name]
		n := sort.Search(len(pending), func(i int) bool { return pending[i].at.After(now) })
		for _, s := range pending[:n] {
			q.push(name, s.id)
		}
		q.scheduled[name] = pending[n:]
	}
	return nil
}

func (q *Queue) pop(queues []string) *jobx.Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range queues {
		ids := q.ready[name]
		if len(ids) == 0 {
			continue
		}
		id := ids[0]
		q.ready[name] = ids[1:]

		info := q.jobs[id]
		info.Status = jobx.StatusActive
		info.Attempts++
		info.UpdatedAt = time.Now().UTC()
		cp := *info
		return &cp
	}
	return nil
}

// push and schedule expect q.mu to be held.
func (q *Queue) push(name, id string) {
	q.ready[name] = append(q.ready[name], id)
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) schedule(name, id string, at time.Time) {
	list := append(q.scheduled[name], scheduled{id: id, at: at})
	sort.SliceStable(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })
	q.scheduled[name] = list
}
