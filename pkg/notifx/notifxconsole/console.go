package notifxconsole

import (
	"context"
	"strings"

	"github.com/secufusion/iamplane/pkg/logx"
	"github.com/secufusion/iamplane/pkg/notifx"
)

// Provider writes mail to the log instead of delivering it. Development only.
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Send(ctx context.Context, msg notifx.Message) error {
	logx.WithContext(ctx).WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	}).Info("📧 notifx/console: email not delivered (dev mode)")

	if msg.HTMLBody != "" {
		logx.Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	}
	if msg.TextBody != "" {
		logx.Debugf("notifx/console: text body:\n%s", msg.TextBody)
	}
	return nil
}
