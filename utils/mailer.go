package utils

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"liquidreach/models"
)

// SMTPMailer delivers outreach mail through the persona's own SMTP account.
type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string, cred models.EmailCredential) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", cred.FromEmail)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(cred.SMTPHost, cred.SMTPPort, cred.SMTPUsername, cred.SMTPPassword)

	// gomail has no context support; run the dial in a goroutine so the
	// caller's deadline still bounds the step.
	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// OutreachMailer picks the transport a persona is configured for: SendGrid
// when an API key is present, the persona's SMTP account otherwise.
type OutreachMailer struct {
	sendgrid *SendGridMailer
	smtp     *SMTPMailer
}

func NewOutreachMailer(timeout time.Duration) *OutreachMailer {
	return &OutreachMailer{
		sendgrid: NewSendGridMailer(timeout),
		smtp:     NewSMTPMailer(),
	}
}

func (m *OutreachMailer) Send(ctx context.Context, to, subject, body string, cred models.EmailCredential) error {
	if cred.SendGridAPIKey != "" {
		return m.sendgrid.Send(ctx, to, subject, body, cred)
	}
	if cred.SMTPHost == "" {
		return fmt.Errorf("persona %s has no email transport configured", cred.FromEmail)
	}
	return m.smtp.Send(ctx, to, subject, body, cred)
}
