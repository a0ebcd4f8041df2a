package notifx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	sent []notifx.Message
	err  error
}

func (r *recorder) Send(_ context.Context, msg notifx.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestSendFillsDefaultFrom(t *testing.T) {
	rec := &recorder{}
	c := notifx.NewClient(rec, "noreply@secufusion.io")

	require.NoError(t, c.Send(context.Background(), notifx.Message{To: []string{"a@x.io"}, Subject: "hi"}))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "noreply@secufusion.io", rec.sent[0].From)
}

func TestSendValidates(t *testing.T) {
	c := notifx.NewClient(&recorder{}, "")

	err := c.Send(context.Background(), notifx.Message{Subject: "hi"})
	assert.True(t, errx.HasCode(err, notifx.CodeInvalidMessage))

	err = c.Send(context.Background(), notifx.Message{To: []string{"a@x.io"}})
	assert.True(t, errx.HasCode(err, notifx.CodeInvalidMessage))

	err = notifx.NewClient(nil, "").Send(context.Background(), notifx.Message{To: []string{"a@x.io"}, Subject: "s"})
	assert.True(t, errx.HasCode(err, notifx.CodeNoProvider))
}

func TestSendTemplate(t *testing.T) {
	rec := &recorder{}
	c := notifx.NewClient(rec, "from@x.io")
	require.NoError(t, c.RegisterTemplate("greet", `<p>Hello {{.Name}}</p>`))

	err := c.SendTemplate(context.Background(), "greet", map[string]string{"Name": "<b>ann</b>"},
		notifx.Message{To: []string{"a@x.io"}, Subject: "s"})
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello &lt;b&gt;ann&lt;/b&gt;</p>", rec.sent[0].HTMLBody)

	err = c.SendTemplate(context.Background(), "missing", nil, notifx.Message{To: []string{"a@x.io"}, Subject: "s"})
	assert.True(t, errx.HasCode(err, notifx.CodeTemplateNotFound))
}

func TestProviderErrorPassesThrough(t *testing.T) {
	boom := notifx.ErrSendFailed(errors.New("smtp down"))
	c := notifx.NewClient(&recorder{err: boom}, "f@x.io")

	err := c.Send(context.Background(), notifx.Message{To: []string{"a@x.io"}, Subject: "s"})
	assert.True(t, errx.HasCode(err, notifx.CodeSendFailed))
}
