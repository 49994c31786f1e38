package engine

import (
	"context"
	"time"

	"liquidreach/models"
)

// Store is the persistence boundary the engine drives. Implementations must
// make TransitionProspect a single conditional row update so that the sweep
// and a webhook racing on the same prospect cannot both win; a lost update
// reports false and is treated as a no-op by the engine.
type Store interface {
	// DueProspects returns up to limit ACTIVE prospects whose next step is
	// due at or before now. Terminal and paused prospects are never
	// returned, regardless of any stale due timestamp.
	DueProspects(now time.Time, limit int) ([]models.Prospect, error)
	GetProspect(id uint) (*models.Prospect, error)
	// FindProspectByEmail returns (nil, nil) when no prospect matches.
	FindProspectByEmail(email string) (*models.Prospect, error)
	// TransitionProspect applies updates to the prospect iff its status
	// still equals from. It reports whether the update won.
	TransitionProspect(id uint, from models.ProspectStatus, updates map[string]interface{}) (bool, error)

	GetStep(id uint) (*models.CampaignStep, error)
	// GetStepByNumber returns (nil, nil) when the campaign has no such step.
	GetStepByNumber(campaignID uint, stepNumber int) (*models.CampaignStep, error)

	// GetPersona returns the persona with credentials already decrypted.
	GetPersona(id uint) (*models.Persona, error)
	GetTemplate(id uint) (*models.Template, error)

	AppendActivity(entry *models.ActivityLog) error
	// FindActivityByExternalID returns (nil, nil) when no entry matches.
	FindActivityByExternalID(externalID string) (*models.ActivityLog, error)
	// ResolveActivity flips a PENDING entry to COMPLETED or FAILED. Entries
	// are otherwise immutable.
	ResolveActivity(id uint, status models.ActivityStatus) error
}

// EmailSender delivers one outreach email synchronously. The credential is
// passed through opaque; a timeout is treated like any transport failure.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string, cred models.EmailCredential) error
}

// AutomationLaunch describes one network action handed to the remote
// automation agent.
type AutomationLaunch struct {
	AgentID    string
	ProfileURL string
	Message    string
	WebhookURL string
	APIKey     string
}

// AutomationLauncher starts an asynchronous network action. The launch call
// is synchronous and returns the container id that the later completion
// webhook will carry.
type AutomationLauncher interface {
	Launch(ctx context.Context, launch AutomationLaunch) (containerID string, err error)
}
