package user

import (
	"strings"
	"time"

	"github.com/secufusion/iamplane/pkg/kernel"
)

// Status of the local user mirror.
type Status string

const (
	StatusCreating Status = "CREATING"
	StatusActive   Status = "ACTIVE"
)

// User is the local mirror of a realm user. Exactly one user per tenant is
// the default (administrator) user.
type User struct {
	ID             kernel.UserID
	TenantID       kernel.TenantID
	UserName       string
	Email          string
	PhoneNo        string
	FirstName      string
	LastName       string
	Status         Status
	KeycloakUserID string
	DefaultUser    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsLinked reports whether the user has been created on the IdP.
func (u *User) IsLinked() bool {
	return u.KeycloakUserID != ""
}

// Response is the public shape of a user.
type Response struct {
	UserID      kernel.UserID `json:"pkUserId"`
	UserName    string        `json:"userName"`
	Email       string        `json:"email"`
	PhoneNumber string        `json:"phoneNumber"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Status      Status        `json:"status"`
	DefaultUser bool          `json:"defaultUser"`
}

func (u *User) ToResponse() Response {
	return Response{
		UserID:      u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNo,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Status:      u.Status,
		DefaultUser: u.DefaultUser,
	}
}

// Request creates or updates a tenant user.
type Request struct {
	UserName    string `json:"userName" validate:"required,max=64"`
	Email       string `json:"email" validate:"required,email,max=255"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=32"`
	FirstName   string `json:"firstName" validate:"max=100"`
	LastName    string `json:"lastName" validate:"max=100"`
}

// Normalized trims every field and lower-cases the username.
func (r Request) Normalized() Request {
	return Request{
		UserName:    strings.ToLower(strings.TrimSpace(r.UserName)),
		Email:       strings.TrimSpace(r.Email),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
	}
}

// ApplyTo copies the profile fields onto u.
func (r Request) ApplyTo(u *User) {
	u.UserName = r.UserName
	u.Email = r.Email
	u.PhoneNo = r.PhoneNumber
	u.FirstName = r.FirstName
	u.LastName = r.LastName
}

// DeleteResponse reports a user deletion. Deleted is false when the realm
// user could not be removed.
type DeleteResponse struct {
	Deleted bool          `json:"deleted"`
	UserID  kernel.UserID `json:"userId"`
}

// CheckRequest selects one availability probe; the first non-empty field wins.
type CheckRequest struct {
	UserName    string `query:"userName"`
	PhoneNumber string `query:"phoneNumber"`
	Email       string `query:"email"`
}

func (c CheckRequest) Empty() bool {
	return c.UserName == "" && c.PhoneNumber == "" && c.Email == ""
}

// LoginResponse echoes the verified bearer subject back to the caller.
type LoginResponse struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
	Message     string `json:"message"`
}
