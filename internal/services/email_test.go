package services

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotledger_app/internal/config"
)

func TestSendEmailRequiresCredentials(t *testing.T) {
	svc := NewEmailService(&config.Config{SMTPHost: "smtp.example.com"})
	err := svc.SendEmail([]string{"a@example.com"}, "Hi", "Body")
	assert.EqualError(t, err, "SMTP credentials not fully configured")
}

func TestSendEmailBuildsMessage(t *testing.T) {
	svc := NewEmailService(&config.Config{
		SMTPHost: "smtp.example.com",
		SMTPPort: "587",
		SMTPUser: "mailer@example.com",
		SMTPPass: "secret",
	})

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	require.NoError(t, svc.SendEmail([]string{"buyer@example.com"}, "EMI approved", "Paid months: 4"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "mailer@example.com", gotFrom)
	assert.Equal(t, []string{"buyer@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: EMI approved\r\n")
	assert.Contains(t, gotMsg, "Paid months: 4")

	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	err := svc.SendEmail([]string{"buyer@example.com"}, "EMI approved", "Paid months: 4")
	assert.ErrorContains(t, err, "failed to send email")

	assert.Error(t, svc.SendEmail(nil, "x", "y"))
}
