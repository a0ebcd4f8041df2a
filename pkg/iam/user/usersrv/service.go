package usersrv

import (
	"context"
	"strings"
	"time"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/authconfig"
	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/txx"
	"github.com/secufusion/iamplane/pkg/validatorx"
)

// TenantFinder resolves the tenant, and so the realm, a user belongs to.
type TenantFinder interface {
	FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error)
}

// WelcomeSender mails a new user where to log in.
type WelcomeSender interface {
	Send(ctx context.Context, to, loginURL, username string) error
}

// Deps are the collaborators of UserService. Only Users is needed by the
// read paths; Configs and Mailer are optional.
type Deps struct {
	Users   user.Repository
	Tenants TenantFinder
	Configs authconfig.Repository
	IdP     idpx.AdminClient
	Mailer  WelcomeSender
	Tx      txx.Runner
}

type UserService struct {
	users   user.Repository
	tenants TenantFinder
	configs authconfig.Repository
	idp     idpx.AdminClient
	mailer  WelcomeSender
	tx      txx.Runner
}

func NewUserService(deps Deps) *UserService {
	tx := deps.Tx
	if tx == nil {
		tx = txx.NewScopeRunner()
	}
	return &UserService{
		users:   deps.Users,
		tenants: deps.Tenants,
		configs: deps.Configs,
		idp:     deps.IdP,
		mailer:  deps.Mailer,
		tx:      tx,
	}
}

// ============================================================================
// Create / Update / Delete
// ============================================================================

// CreateUser stores a local user, creates it in the tenant realm, asks the
// IdP to mail its required actions and grants realm-admin. If any remote
// step fails the local row is rolled back and the realm user removed.
func (s *UserService) CreateUser(ctx context.Context, tenantID kernel.TenantID, req user.Request) (*user.Response, error) {
	t, err := s.findTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	req = req.Normalized()
	if err := validatorx.Struct(req); err != nil {
		return nil, err
	}
	if err := s.validateUnique(ctx, t, req, nil, user.ErrCreateFailed); err != nil {
		return nil, err
	}

	log := logx.WithContext(ctx).WithFields(logx.Fields{
		"tenant_id": t.ID,
		"realm":     t.RealmName,
		"user_name": req.UserName,
	})

	now := time.Now().UTC()
	u := &user.User{
		ID:        kernel.NewUserID(),
		TenantID:  t.ID,
		Status:    user.StatusCreating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.ApplyTo(u)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}

		remoteID, err := s.idp.CreateUser(ctx, t.RealmName, idpx.User{
			Username:  u.UserName,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Enabled:   true,
		})
		if err != nil {
			return user.ErrRemoteCreateFailed(err)
		}
		txx.OnRollback(ctx, "remove_realm_user", func(ctx context.Context) error {
			if err := s.idp.RemoveUser(ctx, t.RealmName, remoteID); err != nil && !idpx.IsNotFound(err) {
				return err
			}
			logx.WithContext(ctx).WithField("user_name", u.UserName).Warn("↩️  Realm user removed after user creation rolled back")
			return nil
		})

		actions := []string{idpx.ActionUpdatePassword, idpx.ActionVerifyEmail}
		if err := s.idp.SendRequiredActionEmail(ctx, t.RealmName, remoteID, actions); err != nil {
			return user.ErrCreateFailed(err)
		}
		if err := s.idp.AssignRealmAdminRole(ctx, t.RealmName, remoteID); err != nil {
			return user.ErrCreateFailed(err)
		}
		if err := s.users.LinkRemote(ctx, u.ID, remoteID, user.StatusActive); err != nil {
			return err
		}
		u.KeycloakUserID, u.Status = remoteID, user.StatusActive

		txx.OnCommit(ctx, "welcome_user", func(ctx context.Context) error {
			return s.sendWelcome(ctx, t, u)
		})
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("User creation failed")
		return nil, err
	}

	log.WithField("user_id", u.ID).Info("🎉 User created")
	resp := u.ToResponse()
	return &resp, nil
}

// sendWelcome mails the tenant login URL once one has been stored.
func (s *UserService) sendWelcome(ctx context.Context, t *tenant.Tenant, u *user.User) error {
	if s.mailer == nil {
		return nil
	}
	loginURL := t.LoginURL
	if s.configs != nil {
		if cfg, err := s.configs.FindByTenant(ctx, t.ID); err == nil && cfg.LoginURL != "" {
			loginURL = cfg.LoginURL
		}
	}
	if loginURL == "" {
		return nil
	}
	return s.mailer.Send(ctx, u.Email, loginURL, u.UserName)
}

// UpdateUser rewrites the profile locally and on the realm user, in one
// unit of work.
func (s *UserService) UpdateUser(ctx context.Context, id kernel.UserID, req user.Request) (*user.Response, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.findTenant(ctx, u.TenantID)
	if err != nil {
		return nil, err
	}
	req = req.Normalized()
	if err := validatorx.Struct(req); err != nil {
		return nil, err
	}
	if err := s.validateUnique(ctx, t, req, u, user.ErrUpdateFailed); err != nil {
		return nil, err
	}

	req.ApplyTo(u)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if !u.IsLinked() {
			return nil
		}
		err := s.idp.UpdateUser(ctx, t.RealmName, idpx.User{
			ID:        u.KeycloakUserID,
			Username:  u.UserName,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Enabled:   true,
		})
		if err != nil {
			return user.ErrUpdateFailed(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logx.WithContext(ctx).WithField("user_id", u.ID).Info("User updated")
	resp := u.ToResponse()
	return &resp, nil
}

// DeleteUser removes the realm user on a best-effort basis and then the
// local row. Deleted reports whether the realm side is gone too.
func (s *UserService) DeleteUser(ctx context.Context, id kernel.UserID) (*user.DeleteResponse, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logx.WithContext(ctx).WithFields(logx.Fields{"user_id": u.ID, "tenant_id": u.TenantID})

	removed := true
	if u.IsLinked() {
		if err := s.removeRemote(ctx, u); err != nil {
			log.WithError(err).Warn("⚠️  Realm user deletion failed, deleting local row anyway")
			removed = false
		}
	}

	if err := s.users.Delete(ctx, u.ID); err != nil {
		return nil, err
	}
	log.Info("🗑️  User deleted")
	return &user.DeleteResponse{Deleted: removed, UserID: u.ID}, nil
}

func (s *UserService) removeRemote(ctx context.Context, u *user.User) error {
	t, err := s.findTenant(ctx, u.TenantID)
	if err != nil {
		return err
	}
	err = s.idp.RemoveUser(ctx, t.RealmName, u.KeycloakUserID)
	if idpx.IsNotFound(err) {
		return nil
	}
	return err
}

// validateUnique checks email, username and phone locally and then the
// username in the realm. current is the user being updated, whose own
// values never count as taken.
func (s *UserService) validateUnique(ctx context.Context, t *tenant.Tenant, req user.Request, current *user.User, remoteFailed func(error) *errx.Error) error {
	checks := []struct {
		field user.UniqueField
		value string
		own   string
		taken func() *errx.Error
	}{
		{user.FieldEmail, req.Email, "", user.ErrEmailExists},
		{user.FieldUserName, req.UserName, "", user.ErrUserNameExists},
		{user.FieldPhone, req.PhoneNumber, "", user.ErrPhoneExists},
	}
	if current != nil {
		checks[0].own, checks[1].own, checks[2].own = current.Email, current.UserName, current.PhoneNo
	}
	for _, c := range checks {
		if c.value == "" || strings.EqualFold(c.value, c.own) {
			continue
		}
		exists, err := s.users.ExistsBy(ctx, c.field, c.value)
		if err != nil {
			return err
		}
		if exists {
			return c.taken()
		}
	}

	found, err := s.idp.FindUserByUsername(ctx, t.RealmName, req.UserName)
	if err != nil {
		return remoteFailed(err)
	}
	for _, remote := range found {
		if current != nil && remote.ID == current.KeycloakUserID {
			continue
		}
		return user.ErrRemoteExists().WithDetail("realm", t.RealmName)
	}
	return nil
}

func (s *UserService) findTenant(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if errx.HasCode(err, tenant.CodeTenantNotFound) {
		return nil, errx.ResourceNotFound("Tenant not found: " + id.String())
	}
	return t, err
}

// ============================================================================
// Reads
// ============================================================================

func (s *UserService) GetUser(ctx context.Context, id kernel.UserID) (*user.Response, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := u.ToResponse()
	return &resp, nil
}

// ListUsers returns every user of every tenant.
func (s *UserService) ListUsers(ctx context.Context) ([]user.Response, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	return responses(users), nil
}

// Check reports whether the first supplied value is still free.
func (s *UserService) Check(ctx context.Context, req user.CheckRequest) (string, error) {
	var (
		field            user.UniqueField
		value            string
		taken, available string
	)
	switch {
	case strings.TrimSpace(req.UserName) != "":
		field, value = user.FieldUserName, strings.ToLower(strings.TrimSpace(req.UserName))
		taken, available = "Username already exists.", "Username is available."
	case strings.TrimSpace(req.PhoneNumber) != "":
		field, value = user.FieldPhone, strings.TrimSpace(req.PhoneNumber)
		taken, available = "Mobile Number already exists.", "Mobile Number is available."
	case strings.TrimSpace(req.Email) != "":
		field, value = user.FieldEmail, strings.TrimSpace(req.Email)
		taken, available = "Email already exists.", "Email is available."
	default:
		return "", user.ErrCheckParameter()
	}

	exists, err := s.users.ExistsBy(ctx, field, value)
	if err != nil {
		return "", err
	}
	if exists {
		return taken, nil
	}
	return available, nil
}

// ListByTenant returns the tenant's users with the administrator first.
func (s *UserService) ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]user.Response, error) {
	users, err := s.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return responses(users), nil
}

func responses(users []*user.User) []user.Response {
	out := make([]user.Response, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out
}

// Echo describes the caller of a verified request.
func (s *UserService) Echo(ac *kernel.AuthContext) user.LoginResponse {
	return user.LoginResponse{
		UserID:      ac.UserID.String(),
		Username:    ac.Username,
		Email:       ac.Email,
		AccessToken: ac.Token,
		Message:     "Login successful",
	}
}
