package notifxses_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/secufusion/iamplane/pkg/errx"
	"github.com/secufusion/iamplane/pkg/notifx"
	"github.com/secufusion/iamplane/pkg/notifx/notifxses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	in  *ses.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.in = in
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, f.err
}

func TestSendBuildsInput(t *testing.T) {
	api := &fakeSES{}
	p := notifxses.New(api)

	err := p.Send(context.Background(), notifx.Message{
		From: "f@x.io", To: []string{"a@x.io"}, Subject: "Welcome", HTMLBody: "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "f@x.io", aws.ToString(api.in.Source))
	assert.Equal(t, []string{"a@x.io"}, api.in.Destination.ToAddresses)
	assert.Equal(t, "<p>hi</p>", aws.ToString(api.in.Message.Body.Html.Data))
	assert.Nil(t, api.in.Message.Body.Text)
}

func TestSendWrapsFailure(t *testing.T) {
	p := notifxses.New(&fakeSES{err: errors.New("throttled")})

	err := p.Send(context.Background(), notifx.Message{From: "f@x.io", To: []string{"a@x.io"}, Subject: "s"})
	assert.True(t, errx.HasCode(err, notifx.CodeSendFailed))
}
