package models

import "gorm.io/gorm"

// ActivityStatus is the outcome recorded on a timeline entry.
type ActivityStatus string

const (
	ActivityCompleted ActivityStatus = "COMPLETED"
	ActivityFailed    ActivityStatus = "FAILED"
	ActivityPending   ActivityStatus = "PENDING"
)

// ActivityLog is the unified, append-only timeline of everything attempted
// for a prospect. Entries are never deleted; the only permitted mutation is
// resolving a PENDING entry to COMPLETED or FAILED when its asynchronous
// action reports back. ExternalID carries the automation container id (or
// an outbound message id) and is the correlation key for webhooks.
type ActivityLog struct {
	gorm.Model
	ProspectID uint  `gorm:"not null;index" json:"prospect_id"`
	PersonaID  uint  `gorm:"index" json:"persona_id"`
	CampaignID *uint `json:"campaign_id"`
	StepID     *uint `json:"step_id"`

	Channel Channel        `gorm:"type:varchar(16)" json:"channel"`
	Action  string         `gorm:"not null" json:"action"`
	Status  ActivityStatus `gorm:"type:varchar(16);not null" json:"status"`

	Details    string `gorm:"type:text" json:"details"`
	ExternalID string `gorm:"index" json:"external_id"`
}
