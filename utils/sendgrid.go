package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"liquidreach/models"
)

const sendgridMailSendURL = "https://api.sendgrid.com/v3/mail/send"

// SendGridMailer sends outreach mail through the SendGrid v3 API using the
// persona's own API key.
type SendGridMailer struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func NewSendGridMailer(timeout time.Duration) *SendGridMailer {
	return &SendGridMailer{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, to, subject, body string, cred models.EmailCredential) error {
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": cred.FromEmail},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": body},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sendgrid payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(sendgridMailSendURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+cred.SendGridAPIKey)
	req.SetBody(raw)

	if err := m.client.DoTimeout(req, resp, remainingTimeout(ctx, m.timeout)); err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusAccepted {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

// remainingTimeout honors the caller's context deadline when it is tighter
// than the configured transport timeout.
func remainingTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < fallback {
			return remaining
		}
	}
	return fallback
}
