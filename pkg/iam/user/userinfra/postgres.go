package userinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/iam/user"
	"github.com/secufusion/iamplane/pkg/kernel"
	"github.com/secufusion/iamplane/pkg/txx"
)

const userColumns = `user_id, tenant_id, user_name, email, phone_no, first_name, last_name,
	status, keycloak_user_id, default_user, created_at, updated_at`

// PostgresUserRepository stores the local user mirrors.
type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) exec(ctx context.Context) sqlx.ExtContext {
	return txx.Executor(ctx, r.db)
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			user_id, tenant_id, user_name, email, phone_no, first_name, last_name,
			status, keycloak_user_id, default_user, created_at, updated_at
		) VALUES (
			:user_id, :tenant_id, :user_name, :email, :phone_no, :first_name, :last_name,
			:status, :keycloak_user_id, :default_user, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, toPersistence(u)); err != nil {
		if dup := duplicate(err); dup != nil {
			return dup
		}
		return errx.Wrap(err, "failed to create user", errx.TypeInternal).
			WithDetail("user_name", u.UserName)
	}
	return nil
}

// duplicate maps a unique violation to the numbered error of its column.
func duplicate(err error) *errx.Error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" { // unique_violation
		return nil
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return user.ErrEmailExists()
	case "users_phone_no_key":
		return user.ErrPhoneExists()
	default:
		return user.ErrUserNameExists().WithDetail("constraint", pqErr.Constraint)
	}
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			user_name = :user_name,
			email = :email,
			phone_no = :phone_no,
			first_name = :first_name,
			last_name = :last_name,
			updated_at = :updated_at
		WHERE user_id = :user_id`

	row := toPersistence(u)
	row.UpdatedAt = time.Now().UTC()
	result, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, row)
	if err != nil {
		if dup := duplicate(err); dup != nil {
			return dup
		}
		return errx.Wrap(err, "failed to update user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	return requireRow(result)
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id kernel.UserID) error {
	result, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete user", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if rows == 0 {
		return user.ErrUserNotFound()
	}
	return nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return r.findOne(ctx, `user_id = $1`, id.String())
}

func (r *PostgresUserRepository) FindByUserName(ctx context.Context, userName string) (*user.User, error) {
	return r.findOne(ctx, `user_name = $1`, userName)
}

func (r *PostgresUserRepository) FindDefaultByTenant(ctx context.Context, tenantID kernel.TenantID) (*user.User, error) {
	return r.findOne(ctx, `tenant_id = $1 AND default_user`, tenantID.String())
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, arg any) (*user.User, error) {
	var row userPersistence
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if err := sqlx.GetContext(ctx, r.exec(ctx), &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user", errx.TypeInternal)
	}
	return row.toDomain(), nil
}

func (r *PostgresUserRepository) ExistsBy(ctx context.Context, field user.UniqueField, value string) (bool, error) {
	var query string
	switch field {
	case user.FieldUserName:
		query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_name = $1)`
	case user.FieldEmail:
		query = `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	case user.FieldPhone:
		query = `SELECT EXISTS(SELECT 1 FROM users WHERE phone_no = $1)`
	default:
		return false, errx.Internal("unknown user field").WithDetail("field", string(field))
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(ctx), &exists, query, value); err != nil {
		return false, errx.Wrap(err, "failed to check user existence", errx.TypeInternal).
			WithDetail("field", string(field))
	}
	return exists, nil
}

func (r *PostgresUserRepository) ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*user.User, error) {
	var rows []userPersistence
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY default_user DESC, created_at`
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &rows, query, tenantID.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list users by tenant", errx.TypeInternal)
	}
	users := make([]*user.User, len(rows))
	for i, row := range rows {
		users[i] = row.toDomain()
	}
	return users, nil
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]*user.User, error) {
	var rows []userPersistence
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, user_name`
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to list users", errx.TypeInternal)
	}
	users := make([]*user.User, len(rows))
	for i, row := range rows {
		users[i] = row.toDomain()
	}
	return users, nil
}

func (r *PostgresUserRepository) LinkRemote(ctx context.Context, id kernel.UserID, keycloakUserID string, status user.Status) error {
	query := `UPDATE users SET keycloak_user_id = $1, status = $2, updated_at = $3 WHERE user_id = $4`
	result, err := r.exec(ctx).ExecContext(ctx, query, keycloakUserID, string(status), time.Now().UTC(), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to link remote user", errx.TypeInternal).
			WithDetail("user_id", id.String())
	}
	return requireRow(result)
}

func (r *PostgresUserRepository) DeleteByTenant(ctx context.Context, tenantID kernel.TenantID) (int64, error) {
	result, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM users WHERE tenant_id = $1`, tenantID.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete tenant users", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}
	return result.RowsAffected()
}

type userPersistence struct {
	ID             string    `db:"user_id"`
	TenantID       string    `db:"tenant_id"`
	UserName       string    `db:"user_name"`
	Email          string    `db:"email"`
	PhoneNo        string    `db:"phone_no"`
	FirstName      string    `db:"first_name"`
	LastName       string    `db:"last_name"`
	Status         string    `db:"status"`
	KeycloakUserID string    `db:"keycloak_user_id"`
	DefaultUser    bool      `db:"default_user"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toPersistence(u *user.User) userPersistence {
	return userPersistence{
		ID:             u.ID.String(),
		TenantID:       u.TenantID.String(),
		UserName:       u.UserName,
		Email:          u.Email,
		PhoneNo:        u.PhoneNo,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Status:         string(u.Status),
		KeycloakUserID: u.KeycloakUserID,
		DefaultUser:    u.DefaultUser,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (p userPersistence) toDomain() *user.User {
	return &user.User{
		ID:             kernel.UserID(p.ID),
		TenantID:       kernel.TenantID(p.TenantID),
		UserName:       p.UserName,
		Email:          p.Email,
		PhoneNo:        p.PhoneNo,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Status:         user.Status(p.Status),
		KeycloakUserID: p.KeycloakUserID,
		DefaultUser:    p.DefaultUser,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
