package models

import (
	"gorm.io/gorm"
)

// Channel identifies which executor performs a step.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelLinkedIn Channel = "LINKEDIN"
)

// StepAction is the concrete action a step performs on its channel.
type StepAction string

const (
	ActionSendEmail   StepAction = "SEND_EMAIL"
	ActionViewProfile StepAction = "VIEW_PROFILE"
	ActionSendConnect StepAction = "SEND_CONNECT"
	ActionSendMessage StepAction = "SEND_MESSAGE"
)

// NeedsMessage reports whether the action carries rendered message content.
func (a StepAction) NeedsMessage() bool {
	return a == ActionSendConnect || a == ActionSendMessage
}

// ValidFor reports whether the action belongs to the given channel.
func (a StepAction) ValidFor(c Channel) bool {
	switch c {
	case ChannelEmail:
		return a == ActionSendEmail
	case ChannelLinkedIn:
		return a == ActionViewProfile || a == ActionSendConnect || a == ActionSendMessage
	}
	return false
}

// Campaign is an ordered multi-channel outreach sequence (the playbook).
type Campaign struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'DRAFT'" json:"status"` // DRAFT, ACTIVE, ARCHIVED

	// Relations
	Steps []CampaignStep `gorm:"foreignKey:CampaignID" json:"steps,omitempty"`
}

// CampaignStep is one action in a sequence. Step numbers are contiguous
// starting at 1 within a campaign; the delay is measured in days from the
// previous step's completion and is always 0 on step 1.
type CampaignStep struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	StepNumber int  `gorm:"not null;index" json:"step_number"`

	Channel Channel    `gorm:"type:varchar(16);not null" json:"channel"`
	Action  StepAction `gorm:"type:varchar(24);not null" json:"action"`

	TemplateID *uint `json:"template_id"` // nil for VIEW_PROFILE
	DelayDays  int   `gorm:"not null;default:0" json:"delay_days"`

	// Relations
	Template *Template `json:"-"`
}
