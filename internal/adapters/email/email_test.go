package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinit/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestTemplateRenderer_PotentialMatch(t *testing.T) {
	r := NewTemplateRenderer()
	start := time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)
	data := &domain.PotentialMatchEmailData{
		Email:    "bob@example.com",
		FullName: "Bob",
		Events: []*domain.Event{
			{ID: "e1", Title: "Study <Group>", Host: "alice", StartTime: start},
			{ID: "e2", Title: "Board games", Host: "carol", StartTime: start},
		},
	}

	subject, html, text, err := r.Render("potential_match", data)
	require.NoError(t, err)
	assert.Equal(t, "2 new events matched for you on PinIt", subject)
	assert.Contains(t, html, "Hi Bob,")
	assert.Contains(t, html, "Study &lt;Group&gt;")
	assert.Contains(t, html, "Mon May 4, 18:30 UTC")
	assert.Contains(t, text, "- Study <Group> hosted by alice")
	assert.Contains(t, text, "- Board games hosted by carol")
}

func TestTemplateRenderer_SingleEventSubject(t *testing.T) {
	r := NewTemplateRenderer()
	subject, _, text, err := r.Render("potential_match", &domain.PotentialMatchEmailData{
		Events: []*domain.Event{{Title: "Picnic", Host: "dan"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1 new event matched for you on PinIt", subject)
	assert.Contains(t, text, "Hi there,")
}

func TestTemplateRenderer_UnknownTemplate(t *testing.T) {
	_, _, _, err := NewTemplateRenderer().Render("missing", nil)
	require.Error(t, err)
}

func TestNewMailer(t *testing.T) {
	tests := []struct {
		name    string
		config  MailerConfig
		wantErr bool
		wantSES bool
	}{
		{"noop", MailerConfig{Provider: "noop"}, false, false},
		{"unknown falls back to noop", MailerConfig{Provider: "smtp"}, false, false},
		{"ses", MailerConfig{Provider: "ses", FromAddress: "noreply@pinit.app", SES: SESConfig{Region: "eu-west-1"}}, false, true},
		{"ses without from address", MailerConfig{Provider: "ses"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMailer(tt.config, discardLogger())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, isSES := m.(*sesMailer)
			assert.Equal(t, tt.wantSES, isSES)
		})
	}
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := newSESMailer(client, MailerConfig{FromAddress: "noreply@pinit.app", FromName: "PinIt"}, discardLogger())

	err := m.Send(context.Background(), "bob@example.com", "Hello", "<p>hi</p>", "")
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "PinIt <noreply@pinit.app>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"bob@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Hello", aws.ToString(client.input.Message.Subject.Data))
	assert.Equal(t, "UTF-8", aws.ToString(client.input.Message.Subject.Charset))
	require.NotNil(t, client.input.Message.Body.Html)
	assert.Nil(t, client.input.Message.Body.Text)
}

func TestSESMailer_SendError(t *testing.T) {
	boom := errors.New("throttled")
	m := newSESMailer(&fakeSES{err: boom}, MailerConfig{FromAddress: "noreply@pinit.app"}, discardLogger())

	err := m.Send(context.Background(), "bob@example.com", "Hello", "", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
