package tenantsrv

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/secufusion/iamplane/pkg/domainx"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/rbac"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/metricx"
	"github.com/secufusion/iamplane/pkg/txx"
)

// ============================================================================
// Entry points
// ============================================================================

// CreateTenant provisions a new tenant, or resumes one whose earlier
// provisioning stopped half way. Every step is idempotent, so calling it
// again with the same request converges on ACTIVE.
func (s *TenantService) CreateTenant(ctx context.Context, req tenant.CreateTenantRequest) (*tenant.TenantResponse, error) {
	req = req.Trimmed()
	if req.TenantName == "" {
		return nil, tenant.ErrNameRequired()
	}

	existing, err := s.tenants.FindByName(ctx, req.TenantName)
	switch {
	case err == nil:
		return s.continueExisting(ctx, existing, req)
	case !errx.HasCode(err, tenant.CodeTenantNotFound):
		return nil, err
	}

	canonical, err := s.validateNew(ctx, req)
	if err == nil {
		var t *tenant.Tenant
		if t, err = s.createSkeleton(ctx, req, canonical); err == nil {
			return s.resume(ctx, t, req)
		}
	}

	// A concurrent request for the same name may have stored its tenant
	// after the lookup above. That tenant wins and this call joins it.
	if errx.HasCode(err, tenant.CodeNameExists) || errx.HasCode(err, tenant.CodeRealmExists) {
		if winner, ferr := s.tenants.FindByName(ctx, req.TenantName); ferr == nil {
			logx.WithContext(ctx).WithField("tenant_id", winner.ID).
				Info("Tenant was created concurrently, continuing with the stored one")
			return s.continueExisting(ctx, winner, req)
		}
	}
	return nil, err
}

// continueExisting rejects an active tenant and resumes any other.
func (s *TenantService) continueExisting(ctx context.Context, existing *tenant.Tenant, req tenant.CreateTenantRequest) (*tenant.TenantResponse, error) {
	if existing.IsActive() {
		return nil, tenant.ErrTenantAlreadyActive().WithDetail("tenant_name", existing.Name)
	}
	logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id": existing.ID,
		"status":    existing.Status,
	}).Info("Tenant exists in an unfinished state, resuming setup")
	return s.resume(ctx, existing, req)
}

// ResumeTenantSetup continues provisioning of the tenant named in req from
// its persisted status.
func (s *TenantService) ResumeTenantSetup(ctx context.Context, req tenant.CreateTenantRequest) (*tenant.TenantResponse, error) {
	req = req.Trimmed()
	t, err := s.tenants.FindByName(ctx, req.TenantName)
	if err != nil {
		return nil, err
	}
	return s.resume(ctx, t, req)
}

// ResumeTenant continues provisioning from stored rows alone. Without a
// password on hand the administrator is asked to set one by email.
func (s *TenantService) ResumeTenant(ctx context.Context, id kernel.TenantID) (*tenant.TenantResponse, error) {
	t, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req := tenant.RequestFrom(t)
	if admin, err := s.users.FindDefaultByTenant(ctx, t.ID); err == nil {
		req.AdminFirstName = admin.FirstName
		req.AdminLastName = admin.LastName
		req.AdminUserName = admin.UserName
		req.AdminEmail = admin.Email
		req.AdminPhoneNumber = admin.PhoneNo
	}
	return s.resume(ctx, t, req)
}

// ============================================================================
// Validation and skeleton
// ============================================================================

// validateNew runs the duplicate checks in their fixed order and returns
// the canonical domain.
func (s *TenantService) validateNew(ctx context.Context, req tenant.CreateTenantRequest) (string, error) {
	if exists, err := s.tenants.ExistsBy(ctx, tenant.FieldName, req.TenantName); err != nil {
		return "", err
	} else if exists {
		return "", tenant.ErrNameExists()
	}

	if req.Domain == "" {
		return "", tenant.ErrDomainRequired()
	}
	canonical, err := s.domains.Normalize(req.Domain)
	if err != nil {
		return "", err
	}

	checks := []struct {
		value    string
		required func() *errx.Error
		exists   func(context.Context, string) (bool, error)
		taken    func() *errx.Error
	}{
		{canonical, tenant.ErrDomainRequired, s.tenantExists(tenant.FieldDomain), tenant.ErrDomainExists},
		{req.PhoneNo, tenant.ErrPhoneRequired, s.tenantExists(tenant.FieldPhone), tenant.ErrPhoneExists},
		{req.Email, tenant.ErrEmailRequired, s.tenantExists(tenant.FieldEmail), tenant.ErrEmailExists},
		{req.AdminEmail, tenant.ErrAdminEmailRequired, s.userExists(user.FieldEmail), tenant.ErrAdminEmailExists},
		{req.AdminPhoneNumber, tenant.ErrAdminPhoneRequired, s.userExists(user.FieldPhone), tenant.ErrAdminPhoneExists},
		{req.AdminUserName, nil, s.userExists(user.FieldUserName), tenant.ErrAdminUsernameExists},
	}
	for _, c := range checks {
		if c.value == "" {
			if c.required == nil {
				continue
			}
			return "", c.required()
		}
		exists, err := c.exists(ctx, c.value)
		if err != nil {
			return "", err
		}
		if exists {
			return "", c.taken()
		}
	}

	exists, err := s.idp.RealmExists(ctx, req.TenantName)
	if err != nil {
		return "", tenant.ErrRealmCreationFailed(err)
	}
	if exists {
		return "", tenant.ErrRealmExists()
	}
	return canonical, nil
}

func (s *TenantService) tenantExists(field tenant.UniqueField) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, v string) (bool, error) { return s.tenants.ExistsBy(ctx, field, v) }
}

func (s *TenantService) userExists(field user.UniqueField) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, v string) (bool, error) { return s.users.ExistsBy(ctx, field, v) }
}

// createSkeleton writes the tenant, its administrator and the admin group,
// then creates the realm, all in one unit of work. If anything in it fails
// the realm is deleted again once the local writes have been rolled back.
func (s *TenantService) createSkeleton(ctx context.Context, req tenant.CreateTenantRequest, canonical string) (*tenant.Tenant, error) {
	now := time.Now().UTC()
	t := &tenant.Tenant{
		ID:        kernel.NewTenantID(),
		Name:      req.TenantName,
		RealmName: req.TenantName,
		Domain:    canonical,
		Status:    tenant.StatusCreating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.ApplyTo(t)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.tenants.Create(ctx, t); err != nil {
			return err
		}

		username := req.AdminUserName
		if username == "" {
			generated, err := s.usernames.Generate(ctx, req.AdminFirstName, req.AdminLastName)
			if err != nil {
				return err
			}
			username = generated
		}
		admin := &user.User{
			ID:          kernel.NewUserID(),
			TenantID:    t.ID,
			UserName:    username,
			Email:       req.AdminEmail,
			PhoneNo:     req.AdminPhoneNumber,
			FirstName:   req.AdminFirstName,
			LastName:    req.AdminLastName,
			Status:      user.StatusCreating,
			DefaultUser: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.users.Create(ctx, admin); err != nil {
			return err
		}

		lc := newLifecycle(t)
		if err := s.step(ctx, lc, EventPersistLocal, nil, nil); err != nil {
			return err
		}
		if _, err := rbac.EnsureTenantAdmin(ctx, s.rbac, t.ID, t.Name, admin.ID); err != nil {
			return err
		}

		var touched atomic.Bool
		txx.OnRollback(ctx, "delete_realm", s.compensateRealm(t.RealmName, &touched))

		return s.step(ctx, lc, EventCreateRealm, s.createRealm(t, &touched), nil)
	})
	if err != nil {
		return nil, err
	}

	logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id":   t.ID,
		"tenant_name": t.Name,
		"domain":      t.Domain,
	}).Info("✅ Tenant skeleton created")
	return t, nil
}

// compensateRealm deletes a realm created inside a unit of work that rolled
// back. It only runs when the realm step reached the IdP.
func (s *TenantService) compensateRealm(realm string, touched *atomic.Bool) txx.Hook {
	return func(ctx context.Context) error {
		if !touched.Load() {
			return nil
		}
		err := s.idp.DeleteRealm(ctx, realm)
		if idpx.IsNotFound(err) {
			err = nil
		}
		metricx.ObserveCompensation(err)
		if err != nil {
			return err
		}
		logx.WithContext(ctx).WithField("realm", realm).Warn("↩️  Realm removed after tenant creation rolled back")
		return nil
	}
}

// ============================================================================
// Resume
// ============================================================================

func (s *TenantService) resume(ctx context.Context, t *tenant.Tenant, req tenant.CreateTenantRequest) (*tenant.TenantResponse, error) {
	if !t.Status.IsValid() {
		return nil, tenant.ErrUnknownState(t.Status).WithDetail("tenant_id", t.ID.String())
	}

	lc := newLifecycle(t)
	for !t.IsActive() {
		event, ok := lc.Next()
		if !ok {
			return nil, tenant.ErrUnknownState(t.Status).WithDetail("tenant_id", t.ID.String())
		}

		var err error
		switch event {
		case EventCreateRealm:
			err = s.step(ctx, lc, event, s.createRealm(t, nil), nil)
		case EventCreateClient:
			err = s.step(ctx, lc, event, s.createClient(t), nil)
		case EventCreateUser:
			err = s.createAdminUser(ctx, lc, req)
		case EventActivate:
			err = s.activate(ctx, lc)
		}
		if err != nil {
			s.scheduleResume(ctx, t, err)
			return nil, err
		}
	}

	resp := t.ToResponse()
	return &resp, nil
}

// scheduleResume queues a later retry for failures the IdP or the mail
// provider may recover from.
func (s *TenantService) scheduleResume(ctx context.Context, t *tenant.Tenant, cause error) {
	if s.jobs == nil || !s.opts.AutoResume || autoResumeDisabled(ctx) || !tenant.IsRemoteStepFailure(cause) {
		return
	}
	job, err := newResumeJob(s.opts.JobQueue, t.ID)
	if err == nil {
		_, err = s.jobs.EnqueueAfter(context.WithoutCancel(ctx), job, s.opts.ResumeDelay)
	}
	log := logx.WithContext(ctx).WithFields(logx.Fields{"tenant_id": t.ID, "status": t.Status})
	if err != nil {
		log.WithError(err).Error("Failed to schedule tenant resume")
		return
	}
	log.Infof("🔁 Tenant resume scheduled in %s", s.opts.ResumeDelay)
}

// ============================================================================
// Steps
// ============================================================================

// stepAction probes and mutates the remote side of a step. It reports
// whether the remote object already existed.
type stepAction func(ctx context.Context) (skipped bool, err error)

// step runs action, then stores the status advance together with commit in
// one unit of work, and finally moves the lifecycle.
func (s *TenantService) step(ctx context.Context, lc *lifecycle, event Event, action stepAction, commit func(ctx context.Context) error) error {
	from := lc.Current()
	to := destination(event)
	if !lc.Can(event) {
		return tenant.ErrStatusConflict(from, to).WithDetail("event", event.String())
	}

	log := logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id": lc.tenant.ID,
		"step":      event.String(),
		"from":      from,
		"to":        to,
	})

	start := time.Now()
	outcome := metricx.OutcomeSuccess
	if action != nil {
		skipped, err := action(ctx)
		if err != nil {
			metricx.ObserveStep(event.String(), metricx.OutcomeFailure, start)
			log.WithError(err).Warn("Provisioning step failed")
			return err
		}
		if skipped {
			outcome = metricx.OutcomeSkipped
		}
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if commit != nil {
			if err := commit(ctx); err != nil {
				return err
			}
		}
		return s.tenants.AdvanceStatus(ctx, lc.tenant.ID, from, to)
	})
	if err != nil {
		metricx.ObserveStep(event.String(), metricx.OutcomeFailure, start)
		log.WithError(err).Warn("Provisioning step could not be stored")
		return err
	}

	if err := lc.Fire(ctx, event); err != nil {
		return tenant.ErrInternal(err).WithDetail("event", event.String())
	}
	lc.tenant.UpdatedAt = time.Now().UTC()
	metricx.ObserveStep(event.String(), outcome, start)
	log.WithField("outcome", outcome).Debug("Provisioning step completed")
	return nil
}

// createRealm creates the tenant realm with the service SMTP settings.
// touched, when given, is set before the realm is created.
func (s *TenantService) createRealm(t *tenant.Tenant, touched *atomic.Bool) stepAction {
	return func(ctx context.Context) (bool, error) {
		exists, err := s.idp.RealmExists(ctx, t.RealmName)
		if err != nil {
			return false, tenant.ErrRealmCreationFailed(err)
		}
		if exists {
			return true, nil
		}
		if touched != nil {
			touched.Store(true)
		}
		err = s.idp.CreateRealm(ctx, idpx.NewRealm(t.RealmName, s.opts.SMTP))
		if idpx.IsConflict(err) {
			return true, nil
		}
		if err != nil {
			return false, tenant.ErrRealmCreationFailed(err)
		}
		return false, nil
	}
}

// createClient registers the public OIDC client named after the tenant.
func (s *TenantService) createClient(t *tenant.Tenant) stepAction {
	return func(ctx context.Context) (bool, error) {
		exists, err := s.idp.ClientExists(ctx, t.RealmName, t.Name)
		if err != nil {
			return false, tenant.ErrClientCreationFailed(err)
		}
		if exists {
			return true, nil
		}
		err = s.idp.CreateClient(ctx, t.RealmName, idpx.NewPublicClient(t.Name, domainx.RedirectURI(t.Domain)))
		if idpx.IsConflict(err) {
			return true, nil
		}
		if err != nil {
			return false, tenant.ErrClientCreationFailed(err)
		}
		return false, nil
	}
}

// createAdminUser creates or links the realm user of the default local
// user, grants it realm-admin and asks the IdP to mail its required actions.
func (s *TenantService) createAdminUser(ctx context.Context, lc *lifecycle, req tenant.CreateTenantRequest) error {
	t := lc.tenant
	admin, err := s.users.FindDefaultByTenant(ctx, t.ID)
	if errx.HasCode(err, user.CodeUserNotFound) {
		return tenant.ErrAdminUserMissing().WithDetail("tenant_id", t.ID.String())
	}
	if err != nil {
		return err
	}

	var remoteID string
	action := func(ctx context.Context) (bool, error) {
		found, err := s.idp.FindUserByUsername(ctx, t.RealmName, admin.UserName)
		if err != nil {
			return false, tenant.ErrUserCreationFailed(err)
		}
		skipped := len(found) > 0
		if skipped {
			remoteID = found[0].ID
		} else {
			remoteID, err = s.idp.CreateUser(ctx, t.RealmName, idpx.User{
				Username:  admin.UserName,
				Email:     admin.Email,
				FirstName: admin.FirstName,
				LastName:  admin.LastName,
				Enabled:   true,
			})
			if err != nil {
				return false, tenant.ErrUserCreationFailed(err)
			}
		}

		actions := []string{idpx.ActionUpdatePassword, idpx.ActionVerifyEmail}
		if req.AdminPassword != "" {
			if err := s.idp.SetPassword(ctx, t.RealmName, remoteID, req.AdminPassword, false); err != nil {
				return false, tenant.ErrUserConfigFailed(err)
			}
			actions = []string{idpx.ActionVerifyEmail}
		}
		if err := s.idp.AssignRealmAdminRole(ctx, t.RealmName, remoteID); err != nil {
			return false, tenant.ErrUserCreationFailed(err)
		}
		if err := s.idp.SendRequiredActionEmail(ctx, t.RealmName, remoteID, actions); err != nil {
			return false, tenant.ErrUserCreationFailed(err)
		}
		return skipped, nil
	}

	commit := func(ctx context.Context) error {
		return s.users.LinkRemote(ctx, admin.ID, remoteID, user.StatusActive)
	}
	return s.step(ctx, lc, EventCreateUser, action, commit)
}

// activate stores the login URL, mails it to the administrator and then
// writes the auth-provider config together with the ACTIVE status.
func (s *TenantService) activate(ctx context.Context, lc *lifecycle) error {
	t := lc.tenant
	loginURL := domainx.LoginURL(s.opts.IdPBaseURL, t.Name, t.Domain)

	action := func(ctx context.Context) (bool, error) {
		if t.LoginURL != loginURL {
			if err := s.tenants.SetLoginURL(ctx, t.ID, loginURL); err != nil {
				return false, err
			}
			t.LoginURL = loginURL
		}
		admin, err := s.users.FindDefaultByTenant(ctx, t.ID)
		if err != nil {
			return false, err
		}
		return false, s.mailer.Send(ctx, admin.Email, loginURL, admin.UserName)
	}

	var cfg *authconfig.Config
	commit := func(ctx context.Context) error {
		existing, err := s.configs.FindByTenant(ctx, t.ID)
		if err == nil {
			cfg = existing
			return nil
		}
		if !errx.HasCode(err, authconfig.CodeConfigNotFound) {
			return err
		}
		cfg = authconfig.NewKeycloakConfig(t.ID, s.opts.IdPBaseURL, t.RealmName, domainx.RedirectURI(t.Domain), loginURL)
		return s.configs.Create(ctx, cfg)
	}

	if err := s.step(ctx, lc, EventActivate, action, commit); err != nil {
		return err
	}

	if s.issuers != nil && cfg != nil {
		if err := s.issuers.Register(ctx, cfg); err != nil {
			logx.WithContext(ctx).WithError(err).WithField("issuer", cfg.IssuerURI).
				Warn("Issuer could not be registered, it will be picked up on the next reload")
		}
	}
	logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id":   t.ID,
		"tenant_name": t.Name,
		"login_url":   t.LoginURL,
	}).Info("🎉 Tenant is active")
	return nil
}
