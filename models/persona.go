package models

import (
	"time"

	"gorm.io/gorm"
)

// Persona is a dedicated sending identity: one email credential set plus the
// automation agent ids used for network actions. Secrets are AES-encrypted
// at rest and decrypted only at the store boundary; the engine passes them
// through without interpreting them.
type Persona struct {
	gorm.Model
	Name     string `gorm:"not null" json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Email sending. A persona uses SendGrid when an API key is configured
	// and falls back to its own SMTP account otherwise.
	FromEmail      string `gorm:"not null" json:"from_email"`
	SendGridAPIKey string `json:"-"` // encrypted
	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `json:"smtp_port"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"-"` // encrypted

	// Inbox polled by the reply-detection worker.
	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"-"` // encrypted
	IMAPEncryption string `gorm:"default:'SSL'" json:"imap_encryption"` // SSL, STARTTLS, NONE

	// Automation agents, one per network action kind.
	AutomationAPIKey string `json:"-"` // encrypted
	AgentViewID      string `json:"agent_view_id"`
	AgentConnectID   string `json:"agent_connect_id"`
	AgentMessageID   string `json:"agent_message_id"`

	LastError  string     `json:"last_error"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// AgentID returns the automation agent configured for a network action kind,
// or "" when the persona has none for it.
func (p *Persona) AgentID(action StepAction) string {
	switch action {
	case ActionViewProfile:
		return p.AgentViewID
	case ActionSendConnect:
		return p.AgentConnectID
	case ActionSendMessage:
		return p.AgentMessageID
	}
	return ""
}

// EmailCredential is the decrypted pass-through bundle handed to email
// transports.
type EmailCredential struct {
	FromEmail      string
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
}

// EmailCredential bundles the persona's sending secrets for a transport.
// The persona must already be decrypted.
func (p *Persona) EmailCredential() EmailCredential {
	return EmailCredential{
		FromEmail:      p.FromEmail,
		SendGridAPIKey: p.SendGridAPIKey,
		SMTPHost:       p.SMTPHost,
		SMTPPort:       p.SMTPPort,
		SMTPUsername:   p.SMTPUsername,
		SMTPPassword:   p.SMTPPassword,
	}
}
