package models

import (
	"time"

	"gorm.io/gorm"
)

// ProspectStatus enumerates the lifecycle states of a prospect.
type ProspectStatus string

const (
	StatusNew                   ProspectStatus = "NEW"
	StatusActive                ProspectStatus = "ACTIVE"
	StatusPausedAwaitingWebhook ProspectStatus = "PAUSED_AWAITING_WEBHOOK"
	StatusPausedManualReview    ProspectStatus = "PAUSED_MANUAL_REVIEW"
	StatusReplied               ProspectStatus = "REPLIED"
	StatusCompleted             ProspectStatus = "COMPLETED"
	StatusUnsubscribed          ProspectStatus = "UNSUBSCRIBED"
)

// Terminal reports whether no further steps may ever be scheduled from s.
func (s ProspectStatus) Terminal() bool {
	switch s {
	case StatusReplied, StatusCompleted, StatusUnsubscribed:
		return true
	}
	return false
}

// legalTransitions is the closed transition table for the prospect state
// machine. Anything not listed here is rejected before a row update is
// attempted. Terminal states have no outgoing edges.
var legalTransitions = map[ProspectStatus][]ProspectStatus{
	StatusNew: {StatusActive, StatusUnsubscribed},
	StatusActive: {
		StatusActive, // same-status advance to the next step
		StatusPausedAwaitingWebhook,
		StatusPausedManualReview,
		StatusReplied,
		StatusCompleted,
		StatusUnsubscribed,
	},
	StatusPausedAwaitingWebhook: {
		StatusActive,
		StatusPausedManualReview,
		StatusCompleted,
		StatusUnsubscribed,
	},
	StatusPausedManualReview: {StatusActive, StatusUnsubscribed},
}

// CanTransition reports whether from -> to is a legal state machine move.
func CanTransition(from, to ProspectStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Prospect is the unit of work driven through a sequence. It is mutated
// exclusively by the orchestration engine (scheduler sweep and webhook
// resolution) and by explicit operator controls; rows are never deleted
// while a sequence is running.
type Prospect struct {
	gorm.Model
	FirstName   string `gorm:"not null" json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `gorm:"not null;uniqueIndex" json:"email"`
	LinkedInURL string `gorm:"index" json:"linkedin_url"`
	Company     string `json:"company"`
	Title       string `json:"title"`

	Status ProspectStatus `gorm:"type:varchar(32);not null;default:'NEW';index:idx_prospects_due,priority:1" json:"status"`

	// Persona lock: set once at enrollment and never reassigned, so the same
	// prospect is never contacted from two different sending identities.
	AssignedPersonaID *uint      `gorm:"index" json:"assigned_persona_id"`
	LockedAt          *time.Time `json:"locked_at"`

	// Current sequence position. NextStepDueAt nil means "not scheduled".
	CurrentCampaignID *uint      `json:"current_campaign_id"`
	CurrentStepID     *uint      `json:"current_step_id"`
	NextStepDueAt     *time.Time `gorm:"index:idx_prospects_due,priority:2" json:"next_step_due_at"`

	// Relations
	AssignedPersona *Persona      `gorm:"foreignKey:AssignedPersonaID" json:"-"`
	Activities      []ActivityLog `gorm:"foreignKey:ProspectID" json:"activities,omitempty"`
}
