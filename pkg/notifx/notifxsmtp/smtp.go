package notifxsmtp

import (
	"context"

	"github.com/secufusion/iamplane/pkg/config"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/wneessen/go-mail"
)

type dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Provider sends mail over SMTP with go-mail.
type Provider struct {
	client dialer
}

// New builds a provider from the same SMTP settings every realm is created with.
func New(cfg config.SMTPConfig) (*Provider, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Auth {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, notifx.ErrSendFailed(err).WithDetail("provider", "smtp")
	}
	return &Provider{client: c}, nil
}

func (p *Provider) Send(ctx context.Context, msg notifx.Message) error {
	m, err := buildMessage(msg)
	if err != nil {
		return notifx.ErrInvalidMessage().WithCause(err)
	}
	if err := p.client.DialAndSendWithContext(ctx, m); err != nil {
		return notifx.ErrSendFailed(err).
			WithDetail("provider", "smtp").
			WithDetail("subject", msg.Subject)
	}
	return nil
}

func buildMessage(msg notifx.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, err
	}
	if err := m.To(msg.To...); err != nil {
		return nil, err
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, err
		}
	}
	m.Subject(msg.Subject)

	switch {
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
		if msg.TextBody != "" {
			m.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
		}
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}
	return m, nil
}
