package tenantsrv

import (
	"context"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/jobx"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
)

// JobTypeResume retries provisioning of one tenant in the background.
const JobTypeResume = "tenant.resume"

const resumeMaxAttempts = 5

type resumePayload struct {
	TenantID kernel.TenantID `json:"tenant_id"`
}

func newResumeJob(queue string, id kernel.TenantID) (jobx.Job, error) {
	job, err := jobx.NewJob(JobTypeResume, queue, resumePayload{TenantID: id})
	if err != nil {
		return job, err
	}
	job.MaxAttempts = resumeMaxAttempts
	return job, nil
}

// RegisterJobs installs the background handlers of the tenant service.
func (s *TenantService) RegisterJobs(c *jobx.Client) {
	c.Register(JobTypeResume, s.handleResume)
}

func (s *TenantService) handleResume(ctx context.Context, info *jobx.Info) error {
	payload, err := jobx.Decode[resumePayload](info)
	if err != nil {
		return err
	}

	// Failures inside the job are retried by jobx itself.
	ctx = withoutAutoResume(ctx)
	resp, err := s.ResumeTenant(ctx, payload.TenantID)
	if errx.HasCode(err, errx.CodeResourceNotFound) {
		logx.WithContext(ctx).WithField("tenant_id", payload.TenantID).Info("Tenant was deleted before it could be resumed")
		return nil
	}
	if err != nil {
		return err
	}

	logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id": resp.TenantID,
		"status":    resp.Status,
		"attempt":   info.Attempts,
	}).Info("Tenant resumed from background job")
	return nil
}

type noAutoResumeKey struct{}

func withoutAutoResume(ctx context.Context) context.Context {
	return context.WithValue(ctx, noAutoResumeKey{}, true)
}

func autoResumeDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noAutoResumeKey{}).(bool)
	return v
}
