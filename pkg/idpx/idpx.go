// Package idpx is the administrative port to the identity provider that
// hosts tenant realms. Every failure is either a conflict (the object
// already exists) or an operation failure the caller may retry.
package idpx

import (
	"context"
	"strconv"
)

// Required actions the IdP can ask a user to complete by email.
const (
	ActionUpdatePassword = "UPDATE_PASSWORD"
	ActionVerifyEmail    = "VERIFY_EMAIL"
)

// AdminClient operates on realms, clients and users through one long-lived
// administrative session.
type AdminClient interface {
	// Open acquires the administrative session; Close releases it.
	Open(ctx context.Context) error
	Close() error

	RealmExists(ctx context.Context, name string) (bool, error)
	CreateRealm(ctx context.Context, realm Realm) error
	DeleteRealm(ctx context.Context, name string) error

	ClientExists(ctx context.Context, realm, clientID string) (bool, error)
	CreateClient(ctx context.Context, realm string, client Client) error
	// UpdateClientRedirects replaces the redirect URIs of an existing client.
	UpdateClientRedirects(ctx context.Context, realm, clientID string, redirectURIs []string) error

	FindUserByUsername(ctx context.Context, realm, username string) ([]User, error)
	// CreateUser returns the IdP id of the new user, or of the existing user
	// with the same username.
	CreateUser(ctx context.Context, realm string, user User) (string, error)
	UpdateUser(ctx context.Context, realm string, user User) error
	RemoveUser(ctx context.Context, realm, userID string) error

	SetPassword(ctx context.Context, realm, userID, password string, temporary bool) error
	SendRequiredActionEmail(ctx context.Context, realm, userID string, actions []string) error
	AssignRealmAdminRole(ctx context.Context, realm, userID string) error
}

// Realm is the realm representation sent on create.
type Realm struct {
	Realm      string            `json:"realm"`
	Enabled    bool              `json:"enabled"`
	SMTPServer map[string]string `json:"smtpServer,omitempty"`
}

// SMTP is the mail server a realm uses for its own verification and reset mails.
type SMTP struct {
	Host     string
	Port     int
	From     string
	Auth     bool
	StartTLS bool
	Username string
	Password string
}

// NewRealm builds an enabled realm that sends mail through smtp.
func NewRealm(name string, smtp SMTP) Realm {
	r := Realm{Realm: name, Enabled: true}
	if smtp.Host != "" {
		r.SMTPServer = map[string]string{
			"host":     smtp.Host,
			"port":     strconv.Itoa(smtp.Port),
			"from":     smtp.From,
			"auth":     strconv.FormatBool(smtp.Auth),
			"starttls": strconv.FormatBool(smtp.StartTLS),
			"ssl":      "false",
		}
		if smtp.Auth {
			r.SMTPServer["user"] = smtp.Username
			r.SMTPServer["password"] = smtp.Password
		}
	}
	return r
}

// Client is an OIDC client representation.
type Client struct {
	ClientID            string   `json:"clientId"`
	Name                string   `json:"name,omitempty"`
	Protocol            string   `json:"protocol"`
	PublicClient        bool     `json:"publicClient"`
	StandardFlowEnabled bool     `json:"standardFlowEnabled"`
	Enabled             bool     `json:"enabled"`
	RedirectURIs        []string `json:"redirectUris"`
	WebOrigins          []string `json:"webOrigins"`
}

// NewPublicClient builds the public authorization-code client a tenant logs in with.
func NewPublicClient(clientID, redirectURI string) Client {
	return Client{
		ClientID:            clientID,
		Name:                clientID,
		Protocol:            "openid-connect",
		PublicClient:        true,
		StandardFlowEnabled: true,
		Enabled:             true,
		RedirectURIs:        []string{redirectURI},
		WebOrigins:          []string{"*"},
	}
}

// User is a realm user.
type User struct {
	ID            string `json:"id,omitempty"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// Operation names, used in error details and by fault injection.
const (
	OpRealmExists         = "realm_exists"
	OpCreateRealm         = "create_realm"
	OpDeleteRealm         = "delete_realm"
	OpClientExists        = "client_exists"
	OpCreateClient        = "create_client"
	OpUpdateClient        = "update_client"
	OpFindUser            = "find_user"
	OpCreateUser          = "create_user"
	OpUpdateUser          = "update_user"
	OpRemoveUser          = "remove_user"
	OpSetPassword         = "set_password"
	OpRequiredActionEmail = "required_action_email"
	OpAssignRealmAdmin    = "assign_realm_admin"
)
