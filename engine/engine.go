package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"liquidreach/models"
)

const (
	defaultBatchSize   = 100
	defaultStepTimeout = 30 * time.Second
)

// Config carries the orchestrator's deployment parameters. It is passed in
// at construction time; the engine never reads process environment itself.
type Config struct {
	// WebhookBaseURL is the externally reachable base for automation
	// completion callbacks.
	WebhookBaseURL string
	// BatchSize bounds how many due prospects one sweep processes.
	BatchSize int
	// StepTimeout bounds every external transport call. A timeout is
	// handled exactly like a transport failure.
	StepTimeout time.Duration
}

// Engine executes sequence steps for due prospects and resolves the
// asynchronous signals (automation webhooks, inbound replies) that park and
// resume them.
type Engine struct {
	store    Store
	mailer   EmailSender
	launcher AutomationLauncher
	cfg      Config
	logger   *logrus.Logger
}

func New(store Store, mailer EmailSender, launcher AutomationLauncher, cfg Config, logger *logrus.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	return &Engine{
		store:    store,
		mailer:   mailer,
		launcher: launcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunScheduler performs one sweep: it selects ACTIVE prospects whose next
// step is due and executes each one in isolation, so a failing prospect
// never blocks the rest of the batch.
func (e *Engine) RunScheduler(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := e.store.DueProspects(now, e.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("querying due prospects: %w", err)
	}
	if len(due) > 0 {
		e.logger.WithField("count", len(due)).Info("processing due prospects")
	}
	for i := range due {
		e.runStep(ctx, &due[i])
	}
	return nil
}

// runStep shields the sweep from a single prospect's failure, panics
// included.
func (e *Engine) runStep(ctx context.Context, p *models.Prospect) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"prospect_id": p.ID,
				"panic":       r,
			}).Error("step execution panicked")
		}
	}()
	if err := e.ExecuteProspectStep(ctx, p); err != nil {
		e.logger.WithField("prospect_id", p.ID).WithError(err).Error("step execution failed")
	}
}

// ExecuteProspectStep runs the prospect's current step. A missing step,
// persona, or agent id is a configuration error: it is logged and the
// prospect is left untouched so the operator can fix the record and the
// next sweep retries.
func (e *Engine) ExecuteProspectStep(ctx context.Context, p *models.Prospect) error {
	if p.CurrentStepID == nil {
		return fmt.Errorf("prospect %d has no current step", p.ID)
	}
	step, err := e.store.GetStep(*p.CurrentStepID)
	if err != nil {
		return fmt.Errorf("loading step %d: %w", *p.CurrentStepID, err)
	}
	if p.AssignedPersonaID == nil {
		return fmt.Errorf("prospect %d has no assigned persona", p.ID)
	}
	persona, err := e.store.GetPersona(*p.AssignedPersonaID)
	if err != nil {
		return fmt.Errorf("loading persona %d: %w", *p.AssignedPersonaID, err)
	}

	switch step.Channel {
	case models.ChannelEmail:
		return e.executeEmailStep(ctx, p, step, persona)
	case models.ChannelLinkedIn:
		return e.executeNetworkStep(ctx, p, step, persona)
	default:
		return fmt.Errorf("step %d has unknown channel %q", step.ID, step.Channel)
	}
}

// executeEmailStep renders the template and sends synchronously. Success
// advances the prospect inline; any failure parks it for manual review —
// resending a possibly delivered email is never safe, so there is no retry.
func (e *Engine) executeEmailStep(ctx context.Context, p *models.Prospect, step *models.CampaignStep, persona *models.Persona) error {
	if step.TemplateID == nil {
		return e.failStep(p, step, persona, "Email Send Failed", fmt.Errorf("step %d has no template", step.ID))
	}
	tmpl, err := e.store.GetTemplate(*step.TemplateID)
	if err != nil {
		return e.failStep(p, step, persona, "Email Send Failed", fmt.Errorf("loading template %d: %w", *step.TemplateID, err))
	}

	subject := RenderTemplate(tmpl.EmailSubject, p)
	body := RenderTemplate(tmpl.BodyText, p)

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()
	if err := e.mailer.Send(sendCtx, p.Email, subject, body, persona.EmailCredential()); err != nil {
		return e.failStep(p, step, persona, "Email Send Failed", err)
	}

	e.logActivity(&models.ActivityLog{
		ProspectID: p.ID,
		PersonaID:  persona.ID,
		CampaignID: p.CurrentCampaignID,
		StepID:     &step.ID,
		Channel:    models.ChannelEmail,
		Action:     "Email Sent",
		Status:     models.ActivityCompleted,
		Details:    "Subject: " + subject,
		ExternalID: uuid.NewString(),
	})
	return e.AdvanceToNextStep(p.ID, models.StatusActive)
}

// executeNetworkStep launches the remote automation agent for the step's
// action kind. The launch returns a container id synchronously; the action
// itself completes later through the webhook, so the prospect parks in
// PAUSED_AWAITING_WEBHOOK behind a PENDING activity entry keyed by that id.
func (e *Engine) executeNetworkStep(ctx context.Context, p *models.Prospect, step *models.CampaignStep, persona *models.Persona) error {
	agentID := persona.AgentID(step.Action)
	if agentID == "" {
		return fmt.Errorf("persona %d has no automation agent for action %s", persona.ID, step.Action)
	}
	if p.LinkedInURL == "" {
		return fmt.Errorf("prospect %d has no profile URL for a network step", p.ID)
	}

	var message string
	if step.Action.NeedsMessage() && step.TemplateID != nil {
		tmpl, err := e.store.GetTemplate(*step.TemplateID)
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"step_id":     step.ID,
				"template_id": *step.TemplateID,
			}).WithError(err).Warn("template missing, launching without message content")
		} else {
			message = RenderTemplate(tmpl.BodyText, p)
		}
	}

	webhookURL := fmt.Sprintf("%s/api/v1/webhooks/automation/%d",
		strings.TrimRight(e.cfg.WebhookBaseURL, "/"), p.ID)

	launchCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()
	containerID, err := e.launcher.Launch(launchCtx, AutomationLaunch{
		AgentID:    agentID,
		ProfileURL: p.LinkedInURL,
		Message:    message,
		WebhookURL: webhookURL,
		APIKey:     persona.AutomationAPIKey,
	})
	if err != nil {
		return e.failStep(p, step, persona, fmt.Sprintf("LinkedIn %s Failed", step.Action), err)
	}

	// The PENDING entry is written before the status flip so a fast webhook
	// always finds its correlation row; if the flip then loses a race (a
	// reply landed first) the callback resolves against a non-paused
	// prospect and becomes a no-op.
	e.logActivity(&models.ActivityLog{
		ProspectID: p.ID,
		PersonaID:  persona.ID,
		CampaignID: p.CurrentCampaignID,
		StepID:     &step.ID,
		Channel:    models.ChannelLinkedIn,
		Action:     fmt.Sprintf("LinkedIn %s", step.Action),
		Status:     models.ActivityPending,
		Details:    "Waiting for automation webhook",
		ExternalID: containerID,
	})
	_, err = e.transition(p.ID, models.StatusActive, models.StatusPausedAwaitingWebhook, nil)
	return err
}

// failStep records the failure on the timeline and parks the prospect in
// PAUSED_MANUAL_REVIEW. The error is considered handled afterwards.
func (e *Engine) failStep(p *models.Prospect, step *models.CampaignStep, persona *models.Persona, action string, cause error) error {
	e.logActivity(&models.ActivityLog{
		ProspectID: p.ID,
		PersonaID:  persona.ID,
		CampaignID: p.CurrentCampaignID,
		StepID:     &step.ID,
		Channel:    step.Channel,
		Action:     action,
		Status:     models.ActivityFailed,
		Details:    cause.Error(),
	})
	if _, err := e.transition(p.ID, p.Status, models.StatusPausedManualReview, nil); err != nil {
		return err
	}
	e.logger.WithField("prospect_id", p.ID).WithError(cause).Error("step failed, prospect paused for manual review")
	return nil
}

// transition applies a conditional status change. A lost race is a no-op,
// not an error; an illegal move per the transition table is rejected before
// any row update is attempted.
func (e *Engine) transition(id uint, from, to models.ProspectStatus, updates map[string]interface{}) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("illegal transition %s -> %s for prospect %d", from, to, id)
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	won, err := e.store.TransitionProspect(id, from, updates)
	if err != nil {
		return false, fmt.Errorf("transitioning prospect %d to %s: %w", id, to, err)
	}
	if !won {
		e.logger.WithFields(logrus.Fields{
			"prospect_id": id,
			"from":        from,
			"to":          to,
		}).Warn("conditional transition lost, skipping")
	}
	return won, nil
}

func (e *Engine) logActivity(entry *models.ActivityLog) {
	if err := e.store.AppendActivity(entry); err != nil {
		e.logger.WithField("prospect_id", entry.ProspectID).WithError(err).Error("failed to append activity entry")
	}
}
