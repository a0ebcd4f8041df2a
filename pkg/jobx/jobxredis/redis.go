package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/secufusion/iamplane/pkg/jobx"
)

const defaultPrefix = "iam:jobs"

// Queue implements jobx.Queue on Redis: a list per ready queue, a sorted set
// per queue for scheduled work and one string key per job.
type Queue struct {
	rdb    redis.UniversalClient
	prefix string
}

func New(rdb redis.UniversalClient) *Queue {
	return &Queue{rdb: rdb, prefix: defaultPrefix}
}

func (q *Queue) readyKey(name string) string     { return q.prefix + ":ready:" + name }
func (q *Queue) scheduledKey(name string) string { return q.prefix + ":scheduled:" + name }
func (q *Queue) jobKey(id string) string         { return q.prefix + ":job:" + id }

func (q *Queue) Put(ctx context.Context, job jobx.Job, at time.Time) (string, error) {
	now := time.Now().UTC()
	info := jobx.Info{
		ID:          uuid.NewString(),
		Type:        job.Type,
		Queue:       job.Queue,
		Payload:     job.Payload,
		Status:      jobx.StatusPending,
		MaxAttempts: job.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", jobx.ErrRegistry.NewWithCause(jobx.CodeEnqueueFailed, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.jobKey(info.ID), data, 0)
	if at.After(now) {
		pipe.ZAdd(ctx, q.scheduledKey(job.Queue), redis.Z{Score: float64(at.Unix()), Member: info.ID})
	} else {
		pipe.LPush(ctx, q.readyKey(job.Queue), info.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", jobx.ErrRegistry.NewWithCause(jobx.CodeEnqueueFailed, err).WithDetail("queue", job.Queue)
	}
	return info.ID, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*jobx.Info, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, jobx.ErrJobNotFound(id)
	}
	if err != nil {
		return nil, jobx.ErrBackend("get", err).WithDetail("job_id", id)
	}

	var info jobx.Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, jobx.ErrBackend("decode", err).WithDetail("job_id", id)
	}
	return &info, nil
}

// Take blocks for up to timeout waiting on any of the ready lists.
func (q *Queue) Take(ctx context.Context, queues []string, timeout time.Duration) (*jobx.Info, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.readyKey(name)
	}

	res, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) || ctx.Err() != nil {
		return nil, nil
	}
	if err != nil {
		return nil, jobx.ErrBackend("take", err)
	}

	info, err := q.Get(ctx, res[1])
	if err != nil {
		return nil, err
	}
	info.Status = jobx.StatusActive
	info.Attempts++
	return info, q.save(ctx, info)
}

func (q *Queue) Complete(ctx context.Context, id string) error {
	info, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	info.Status = jobx.StatusCompleted
	info.Error = ""
	return q.save(ctx, info)
}

func (q *Queue) Fail(ctx context.Context, id string, reason string, retryAt time.Time) (*jobx.Info, error) {
	info, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	info.Error = reason
	if retryAt.IsZero() || info.Exhausted() {
		info.Status = jobx.StatusFailed
		return info, q.save(ctx, info)
	}

	info.Status = jobx.StatusRetrying
	if err := q.save(ctx, info); err != nil {
		return nil, err
	}
	err = q.rdb.ZAdd(ctx, q.scheduledKey(info.Queue), redis.Z{Score: float64(retryAt.Unix()), Member: id}).Err()
	if err != nil {
		return nil, jobx.ErrBackend("retry", err).WithDetail("job_id", id)
	}
	return info, nil
}

var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('LPUSH', KEYS[2], id)
end
if #ids > 0 then
    redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
end
return #ids
`)

// Promote moves due scheduled jobs onto their ready lists atomically.
func (q *Queue) Promote(ctx context.Context, queues []string, now time.Time) error {
	ts := strconv.FormatInt(now.Unix(), 10)
	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb, []string{q.scheduledKey(name), q.readyKey(name)}, ts).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return jobx.ErrBackend("promote", err).WithDetail("queue", name)
		}
	}
	return nil
}

func (q *Queue) save(ctx context.Context, info *jobx.Info) error {
	info.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(info)
	if err != nil {
		return jobx.ErrBackend("encode", err).WithDetail("job_id", info.ID)
	}
	if err := q.rdb.Set(ctx, q.jobKey(info.ID), data, 0).Err(); err != nil {
		return jobx.ErrBackend("save", err).WithDetail("job_id", info.ID)
	}
	return nil
}
