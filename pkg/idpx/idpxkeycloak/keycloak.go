// Package idpxkeycloak implements idpx.AdminClient against the Keycloak
// admin REST API.
package idpxkeycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/go-resty/resty/v2"
	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/idpx"
	"github.com/secufusion/iamplane/pkg/logx"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const realmManagementClient = "realm-management"

type Config struct {
	BaseURL string

	// AdminRealm hosts the administrative account, usually "master"
	AdminRealm   string
	ClientID     string
	ClientSecret string

	// Username selects the password grant; empty means client credentials
	Username string
	Password string

	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
}

func FromConfig(cfg config.IdPConfig) Config {
	return Config{
		BaseURL:       cfg.BaseURL,
		AdminRealm:    cfg.AdminRealm,
		ClientID:      cfg.AdminClientID,
		ClientSecret:  cfg.AdminClientSecret,
		Username:      cfg.AdminUsername,
		Password:      cfg.AdminPassword,
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		RetryMaxDelay: cfg.RetryMaxDelay,
	}
}

// Client is safe for concurrent use once opened.
type Client struct {
	cfg  Config
	http *resty.Client

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

var _ idpx.AdminClient = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{cfg: cfg}
	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(c.authorize)
	return c
}

func (c *Client) tokenURL() string {
	return c.cfg.BaseURL + "/realms/" + c.cfg.AdminRealm + "/protocol/openid-connect/token"
}

// Open acquires the admin token and keeps a refreshing source for later calls.
func (c *Client) Open(ctx context.Context) error {
	// the source outlives the caller's context
	tctx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, c.http.GetClient())

	var ts oauth2.TokenSource
	if c.cfg.Username != "" {
		oc := &oauth2.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: c.tokenURL(), AuthStyle: oauth2.AuthStyleInParams},
		}
		tok, err := oc.PasswordCredentialsToken(tctx, c.cfg.Username, c.cfg.Password)
		if err != nil {
			return idpx.ErrSessionFailed(err).WithDetail("grant", "password")
		}
		ts = oc.TokenSource(tctx, tok)
	} else {
		cc := &clientcredentials.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			TokenURL:     c.tokenURL(),
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		ts = oauth2.ReuseTokenSource(nil, cc.TokenSource(tctx))
		if _, err := ts.Token(); err != nil {
			return idpx.ErrSessionFailed(err).WithDetail("grant", "client_credentials")
		}
	}

	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()

	logx.WithFields(logx.Fields{"base_url": c.cfg.BaseURL, "realm": c.cfg.AdminRealm}).
		Info("🔑 IdP admin session opened")
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.tokens = nil
	c.mu.Unlock()
	return nil
}

func (c *Client) authorize(_ *resty.Client, r *resty.Request) error {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()

	if ts == nil {
		return idpx.ErrSessionFailed(errors.New("admin session is not open"))
	}
	tok, err := ts.Token()
	if err != nil {
		return idpx.ErrSessionFailed(err)
	}
	r.SetAuthToken(tok.AccessToken)
	return nil
}

// statusError is a response the retrier may see; it is classified after retries end.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// call runs one admin request, retrying transport errors and 5xx answers.
func (c *Client) call(ctx context.Context, op string, send func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	retrier := retry.New(
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil || idpx.IsRetriable(err) {
				return false
			}
			var se *statusError
			if errors.As(err, &se) {
				return se.code >= http.StatusInternalServerError
			}
			return true
		}),
		retry.Delay(c.cfg.RetryDelay),
		retry.MaxDelay(c.cfg.RetryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Attempts(c.cfg.RetryAttempts),
		retry.LastErrorOnly(true),
	)

	var resp *resty.Response
	err := retrier.Do(func() error {
		r, err := send(c.http.R().SetContext(ctx))
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode() >= http.StatusInternalServerError {
			return &statusError{code: r.StatusCode(), body: truncate(r.String())}
		}
		return nil
	})
	if err != nil {
		// session faults come back from OnBeforeRequest unchanged
		if idpx.IsRetriable(err) {
			return nil, err
		}
		logx.WithContext(ctx).WithError(err).WithField("op", op).Warn("idpx/keycloak: request failed")
		return nil, idpx.ErrOperationFailed(op, err)
	}

	if resp.IsSuccess() {
		return resp, nil
	}
	return resp, classify(op, resp)
}

func classify(op string, resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusConflict:
		return idpx.ErrConflict(op)
	case http.StatusNotFound:
		return idpx.ErrNotFound(op)
	default:
		return idpx.ErrOperationFailed(op, &statusError{code: resp.StatusCode(), body: truncate(resp.String())}).
			WithDetail("status", resp.StatusCode())
	}
}

func truncate(s string) string {
	if len(s) > 256 {
		return s[:256]
	}
	return s
}

func (c *Client) RealmExists(ctx context.Context, name string) (bool, error) {
	var realms []idpx.Realm
	_, err := c.call(ctx, idpx.OpRealmExists, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&realms).Get("/admin/realms")
	})
	if err != nil {
		return false, err
	}
	for _, realm := range realms {
		if strings.EqualFold(realm.Realm, name) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) CreateRealm(ctx context.Context, realm idpx.Realm) error {
	_, err := c.call(ctx, idpx.OpCreateRealm, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(realm).Post("/admin/realms")
	})
	return err
}

func (c *Client) DeleteRealm(ctx context.Context, name string) error {
	_, err := c.call(ctx, idpx.OpDeleteRealm, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("realm", name).Delete("/admin/realms/{realm}")
	})
	return err
}

func (c *Client) findClients(ctx context.Context, op, realm, clientID string) ([]clientRef, error) {
	var clients []clientRef
	_, err := c.call(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("realm", realm).
			SetQueryParam("clientId", clientID).
			SetResult(&clients).
			Get("/admin/realms/{realm}/clients")
	})
	return clients, err
}

type clientRef struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
}

func (c *Client) ClientExists(ctx context.Context, realm, clientID string) (bool, error) {
	clients, err := c.findClients(ctx, idpx.OpClientExists, realm, clientID)
	if err != nil {
		return false, err
	}
	for _, cl := range clients {
		if strings.EqualFold(cl.ClientID, clientID) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) CreateClient(ctx context.Context, realm string, client idpx.Client) error {
	_, err := c.call(ctx, idpx.OpCreateClient, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("realm", realm).SetBody(client).Post("/admin/realms/{realm}/clients")
	})
	return err
}

// UpdateClientRedirects reads the full client representation and writes it
// back with new redirect URIs, leaving every other attribute untouched.
func (c *Client) UpdateClientRedirects(ctx context.Context, realm, clientID string, redirectURIs []string) error {
	clients, err := c.findClients(ctx, idpx.OpUpdateClient, realm, clientID)
	if err != nil {
		return err
	}
	var id string
	for _, cl := range clients {
		if strings.EqualFold(cl.ClientID, clientID) {
			id = cl.ID
			break
		}
	}
	if id == "" {
		return idpx.ErrNotFound(idpx.OpUpdateClient).WithDetail("client_id", clientID)
	}

	params := map[string]string{"realm": realm, "id": id}
	rep := map[string]any{}
	_, err = c.call(ctx, idpx.OpUpdateClient, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(params).SetResult(&rep).Get("/admin/realms/{realm}/clients/{id}")
	})
	if err != nil {
		return err
	}
	rep["redirectUris"] = redirectURIs
	_, err = c.call(ctx, idpx.OpUpdateClient, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(params).SetBody(rep).Put("/admin/realms/{realm}/clients/{id}")
	})
	return err
}

func (c *Client) FindUserByUsername(ctx context.Context, realm, username string) ([]idpx.User, error) {
	var users []idpx.User
	_, err := c.call(ctx, idpx.OpFindUser, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("realm", realm).
			SetQueryParams(map[string]string{"username": username, "exact": "true"}).
			SetResult(&users).
			Get("/admin/realms/{realm}/users")
	})
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, realm string, user idpx.User) (string, error) {
	user.ID = ""
	resp, err := c.call(ctx, idpx.OpCreateUser, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("realm", realm).SetBody(user).Post("/admin/realms/{realm}/users")
	})
	if idpx.IsConflict(err) {
		existing, findErr := c.FindUserByUsername(ctx, realm, user.Username)
		if findErr != nil {
			return "", findErr
		}
		for _, u := range existing {
			if strings.EqualFold(u.Username, user.Username) {
				return u.ID, nil
			}
		}
		// conflict on email or another attribute
		return "", err
	}
	if err != nil {
		return "", err
	}

	id := path.Base(resp.Header().Get("Location"))
	if id == "" || id == "." || id == "/" {
		return "", idpx.ErrOperationFailed(idpx.OpCreateUser, errors.New("response carried no user location"))
	}
	return id, nil
}

func (c *Client) UpdateUser(ctx context.Context, realm string, user idpx.User) error {
	_, err := c.call(ctx, idpx.OpUpdateUser, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"realm": realm, "id": user.ID}).
			SetBody(user).
			Put("/admin/realms/{realm}/users/{id}")
	})
	return err
}

func (c *Client) RemoveUser(ctx context.Context, realm, userID string) error {
	_, err := c.call(ctx, idpx.OpRemoveUser, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"realm": realm, "id": userID}).
			Delete("/admin/realms/{realm}/users/{id}")
	})
	return err
}

type credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (c *Client) SetPassword(ctx context.Context, realm, userID, password string, temporary bool) error {
	_, err := c.call(ctx, idpx.OpSetPassword, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"realm": realm, "id": userID}).
			SetBody(credential{Type: "password", Value: password, Temporary: temporary}).
			Put("/admin/realms/{realm}/users/{id}/reset-password")
	})
	return err
}

func (c *Client) SendRequiredActionEmail(ctx context.Context, realm, userID string, actions []string) error {
	_, err := c.call(ctx, idpx.OpRequiredActionEmail, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"realm": realm, "id": userID}).
			SetBody(actions).
			Put("/admin/realms/{realm}/users/{id}/execute-actions-email")
	})
	return err
}

type role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ClientRole  bool   `json:"clientRole"`
	ContainerID string `json:"containerId,omitempty"`
}

// AssignRealmAdminRole binds realm-management/realm-admin to the user.
func (c *Client) AssignRealmAdminRole(ctx context.Context, realm, userID string) error {
	const op = idpx.OpAssignRealmAdmin

	clients, err := c.findClients(ctx, op, realm, realmManagementClient)
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		return idpx.ErrNotFound(op).WithDetail("client", realmManagementClient)
	}
	mgmtID := clients[0].ID

	var admin role
	_, err = c.call(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"realm": realm, "client": mgmtID}).
			SetResult(&admin).
			Get("/admin/realms/{realm}/clients/{client}/roles/realm-admin")
	})
	if err != nil {
		return err
	}

	_, err = c.call(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParams(map[string]string{"realm": realm, "id": userID, "client": mgmtID}).
			SetBody([]role{admin}).
			Post("/admin/realms/{realm}/users/{id}/role-mappings/clients/{client}")
	})
	return err
}
