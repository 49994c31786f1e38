package models

import "gorm.io/gorm"

// Template is channel-scoped message content with merge-tag placeholders
// ({{first_name}}, {{company}}, ...). EmailSubject is only used on the
// email channel.
type Template struct {
	gorm.Model
	Name    string  `gorm:"not null" json:"name"`
	Channel Channel `gorm:"type:varchar(16);not null" json:"channel"`

	EmailSubject string `json:"email_subject"`
	BodyText     string `gorm:"type:text;not null" json:"body_text"`
}
