package notifxsmtp

import (
	"context"
	"errors"
	"testing"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeDialer struct {
	got []*mail.Msg
	err error
}

func (f *fakeDialer) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.got = append(f.got, msgs...)
	return f.err
}

func TestSendDeliversMessage(t *testing.T) {
	d := &fakeDialer{}
	p := &Provider{client: d}

	err := p.Send(context.Background(), notifx.Message{
		From: "noreply@secufusion.io", To: []string{"a@x.io"}, Subject: "Welcome to Secufusion", HTMLBody: "<h3>hi</h3>",
	})
	require.NoError(t, err)
	require.Len(t, d.got, 1)

	rcpts, err := d.got[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.io"}, rcpts)
	assert.Equal(t, []string{"Welcome to Secufusion"}, d.got[0].GetGenHeader(mail.HeaderSubject))
}

func TestSendRejectsBadAddress(t *testing.T) {
	p := &Provider{client: &fakeDialer{}}

	err := p.Send(context.Background(), notifx.Message{From: "not an address", To: []string{"a@x.io"}, Subject: "s"})
	assert.True(t, errx.HasCode(err, notifx.CodeInvalidMessage))
}

func TestSendWrapsTransportFailure(t *testing.T) {
	p := &Provider{client: &fakeDialer{err: errors.New("connection refused")}}

	err := p.Send(context.Background(), notifx.Message{From: "f@x.io", To: []string{"a@x.io"}, Subject: "s"})
	assert.True(t, errx.HasCode(err, notifx.CodeSendFailed))
}
