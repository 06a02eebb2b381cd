package mail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, mailer)
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"user@example.com"},
		Subject: "Verify your email",
		Body:    "Hello",
	})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestFormatMessage(t *testing.T) {
	content := formatMessage("from@example.com", []string{"to@example.com"}, "Subject\r\nBreak", "Body")

	require.Contains(t, content, "From: from@example.com")
	require.Contains(t, content, "Subject: Subject  Break")
	require.True(t, len(content) > 4 && content[len(content)-4:] == "Body")
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
		UseTLS:  true,
	})
	require.NoError(t, err)

	sm, ok := mailer.(*smtpMailer)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, sm.cfg.Timeout)
}

func TestSMTPMailerSendRequiresRecipients(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"   ", "\t"},
		Subject: "No recipients",
		Body:    "Body",
	})
	require.ErrorContains(t, err, "at least one recipient")
}
