package tenantsrv

import (
	"context"

	"github.com/secufusion/iamplane/pkg/iam/tenant"
	"github.com/secufusion/iamplane/pkg/notifx"
)

const (
	WelcomeTemplate = "tenant.welcome"
	welcomeSubject  = "Welcome to Secufusion"
)

const welcomeBody = `<h3>Welcome to Secufusion!</h3>` +
	`<p>Your admin account is ready.</p>` +
	`<p><b>Login:</b> <a href='{{.LoginURL}}'>{{.LoginURL}}</a></p>` +
	`<p><b>Username:</b> {{.Username}}</p><hr/>`

// WelcomeMailer tells a new tenant administrator where to log in.
type WelcomeMailer struct {
	client *notifx.Client
}

func NewWelcomeMailer(client *notifx.Client) (*WelcomeMailer, error) {
	if err := client.RegisterTemplate(WelcomeTemplate, welcomeBody); err != nil {
		return nil, err
	}
	return &WelcomeMailer{client: client}, nil
}

func (m *WelcomeMailer) Send(ctx context.Context, to, loginURL, username string) error {
	data := struct {
		LoginURL string
		Username string
	}{loginURL, username}

	msg := notifx.Message{To: []string{to}, Subject: welcomeSubject}
	if err := m.client.SendTemplate(ctx, WelcomeTemplate, data, msg); err != nil {
		return tenant.ErrEmailSendFailed(err).WithDetail("to", to)
	}
	return nil
}
