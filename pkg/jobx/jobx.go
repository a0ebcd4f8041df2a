package jobx

import (
	"context"
	"sync"
	"time"

	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/logx"
)

// HandlerFunc processes a job. A non-nil error schedules a retry until the
// job runs out of attempts.
type HandlerFunc func(ctx context.Context, job *Info) error

// Enqueuer is what services depend on to schedule background work.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	EnqueueAfter(ctx context.Context, job Job, delay time.Duration) (string, error)
}

// Queue is a job backend.
type Queue interface {
	Put(ctx context.Context, job Job, at time.Time) (string, error)
	Get(ctx context.Context, id string) (*Info, error)
	Take(ctx context.Context, queues []string, timeout time.Duration) (*Info, error)
	Complete(ctx context.Context, id string) error
	// Fail records a failed attempt. The job is rescheduled at retryAt unless
	// it is exhausted or retryAt is zero.
	Fail(ctx context.Context, id string, reason string, retryAt time.Time) (*Info, error)
	Promote(ctx context.Context, queues []string, now time.Time) error
}

// Options configures the worker side of a Client.
type Options struct {
	Queues          []string
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	DequeueTimeout  time.Duration
	RetryDelay      time.Duration
}

// OptionsFromConfig maps the env config section onto worker options.
func OptionsFromConfig(cfg config.JobxConfig) Options {
	return Options{
		Queues:          cfg.Queues,
		Concurrency:     cfg.Concurrency,
		PollInterval:    cfg.PollInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
		DequeueTimeout:  cfg.DequeueTimeout,
		RetryDelay:      cfg.DefaultRetryDelay,
	}
}

func (o Options) withDefaults() Options {
	if len(o.Queues) == 0 {
		o.Queues = []string{"default"}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	if o.DequeueTimeout <= 0 {
		o.DequeueTimeout = 5 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	return o
}

// Client enqueues jobs and runs registered handlers.
type Client struct {
	queue    Queue
	opts     Options
	now      func() time.Time
	handlers map[string]HandlerFunc
	mu       sync.RWMutex
	running  bool
}

func NewClient(queue Queue, opts Options) *Client {
	return &Client{
		queue:    queue,
		opts:     opts.withDefaults(),
		now:      time.Now,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds the handler for a job type, replacing any previous one.
func (c *Client) Register(jobType string, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = h
}

func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	return c.EnqueueAfter(ctx, job, 0)
}

// EnqueueAfter schedules job to become runnable after delay.
func (c *Client) EnqueueAfter(ctx context.Context, job Job, delay time.Duration) (string, error) {
	if job.Type == "" {
		return "", ErrRegistry.New(CodeInvalidJob).WithDetail("reason", "missing type")
	}
	if job.Queue == "" {
		job.Queue = c.opts.Queues[0]
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	return c.queue.Put(ctx, job, c.now().Add(delay))
}

func (c *Client) Get(ctx context.Context, id string) (*Info, error) {
	return c.queue.Get(ctx, id)
}

// Start runs the scheduler and workers until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRegistry.New(CodeAlreadyRunning)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("⚙️  jobx: starting %d workers on queues %v", c.opts.Concurrency, c.opts.Queues)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.schedulerLoop(ctx)
	}()

	for i := range c.opts.Concurrency {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("jobx: all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warn("jobx: shutdown timed out, some jobs may not have completed")
	}
	return nil
}

func (c *Client) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queue.Promote(ctx, c.opts.Queues, c.now()); err != nil && ctx.Err() == nil {
				logx.WithError(err).Warn("jobx: failed to promote scheduled jobs")
			}
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, id int) {
	for ctx.Err() == nil {
		job, err := c.queue.Take(ctx, c.opts.Queues, c.opts.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("jobx: worker %d dequeue error", id)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.opts.PollInterval):
			}
			continue
		}
		if job == nil {
			continue
		}
		c.Process(ctx, job)
	}
}

// Process runs the handler for one taken job and records the outcome.
func (c *Client) Process(ctx context.Context, job *Info) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	log := logx.WithFields(logx.Fields{"job_id": job.ID, "job_type": job.Type, "attempt": job.Attempts})

	if !ok {
		log.Warn("jobx: no handler registered")
		if _, err := c.queue.Fail(ctx, job.ID, "no handler registered", time.Time{}); err != nil {
			log.WithError(err).Error("jobx: failed to mark job as failed")
		}
		return
	}

	if err := handler(ctx, job); err != nil {
		info, failErr := c.queue.Fail(ctx, job.ID, err.Error(), c.now().Add(c.opts.RetryDelay))
		if failErr != nil {
			log.WithError(failErr).Error("jobx: failed to mark job as failed")
			return
		}
		if info.Status == StatusFailed {
			log.WithError(err).Error("❌ jobx: job failed permanently")
		} else {
			log.WithError(err).Warn("jobx: job failed, retry scheduled")
		}
		return
	}

	if err := c.queue.Complete(ctx, job.ID); err != nil {
		log.WithError(err).Error("jobx: failed to complete job")
	}
}
