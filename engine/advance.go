package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"liquidreach/models"
)

// AdvanceToNextStep moves a prospect to step N+1 of its campaign, or marks
// the sequence COMPLETED when no next step exists. The next due time is
// measured from now — the actual completion time — so scheduler lag is
// absorbed rather than compounded. from is the status the caller observed;
// the update only wins if the prospect is still in it.
func (e *Engine) AdvanceToNextStep(prospectID uint, from models.ProspectStatus) error {
	p, err := e.store.GetProspect(prospectID)
	if err != nil {
		return fmt.Errorf("loading prospect %d: %w", prospectID, err)
	}
	if p.CurrentStepID == nil || p.CurrentCampaignID == nil {
		return fmt.Errorf("prospect %d has no sequence position to advance from", prospectID)
	}
	current, err := e.store.GetStep(*p.CurrentStepID)
	if err != nil {
		return fmt.Errorf("loading step %d: %w", *p.CurrentStepID, err)
	}
	next, err := e.store.GetStepByNumber(*p.CurrentCampaignID, current.StepNumber+1)
	if err != nil {
		return fmt.Errorf("looking up step %d of campaign %d: %w", current.StepNumber+1, *p.CurrentCampaignID, err)
	}

	if next != nil {
		due := time.Now().UTC().Add(time.Duration(next.DelayDays) * 24 * time.Hour)
		won, err := e.transition(prospectID, from, models.StatusActive, map[string]interface{}{
			"current_step_id":  next.ID,
			"next_step_due_at": due,
		})
		if err != nil {
			return err
		}
		if won {
			e.logger.WithFields(logrus.Fields{
				"prospect_id": prospectID,
				"step_number": next.StepNumber,
				"due_at":      due,
			}).Info("prospect advanced")
		}
		return nil
	}

	won, err := e.transition(prospectID, from, models.StatusCompleted, map[string]interface{}{
		"current_step_id":  nil,
		"next_step_due_at": nil,
	})
	if err != nil {
		return err
	}
	if won {
		e.logger.WithField("prospect_id", prospectID).Info("prospect completed sequence")
	}
	return nil
}

// HandleAutomationWebhook resolves an asynchronous action result by its
// container id. Unknown ids are logged and discarded; a callback for an
// already-resolved id is a no-op, which makes the endpoint idempotent.
func (e *Engine) HandleAutomationWebhook(containerID string, success bool, errDetail string) error {
	entry, err := e.store.FindActivityByExternalID(containerID)
	if err != nil {
		return fmt.Errorf("looking up container id %q: %w", containerID, err)
	}
	if entry == nil {
		e.logger.WithField("container_id", containerID).Warn("webhook for unknown container id discarded")
		return nil
	}
	if entry.Status != models.ActivityPending {
		e.logger.WithField("container_id", containerID).Info("duplicate webhook ignored, entry already resolved")
		return nil
	}

	if success {
		if err := e.store.ResolveActivity(entry.ID, models.ActivityCompleted); err != nil {
			return fmt.Errorf("resolving activity %d: %w", entry.ID, err)
		}
		return e.AdvanceToNextStep(entry.ProspectID, models.StatusPausedAwaitingWebhook)
	}

	if err := e.store.ResolveActivity(entry.ID, models.ActivityFailed); err != nil {
		return fmt.Errorf("resolving activity %d: %w", entry.ID, err)
	}
	e.logActivity(&models.ActivityLog{
		ProspectID: entry.ProspectID,
		PersonaID:  entry.PersonaID,
		CampaignID: entry.CampaignID,
		StepID:     entry.StepID,
		Channel:    entry.Channel,
		Action:     "Automation Step Failed",
		Status:     models.ActivityFailed,
		Details:    "automation error: " + errDetail,
		ExternalID: containerID,
	})
	_, err = e.transition(entry.ProspectID, models.StatusPausedAwaitingWebhook, models.StatusPausedManualReview, nil)
	return err
}

// HandleEmailReply permanently halts scheduling for an ACTIVE prospect that
// wrote back. Prospects already parked or terminal are left alone — the
// narrow behavior is deliberate (see DESIGN.md).
func (e *Engine) HandleEmailReply(email string) error {
	p, err := e.store.FindProspectByEmail(email)
	if err != nil {
		return fmt.Errorf("looking up prospect by email: %w", err)
	}
	if p == nil || p.Status != models.StatusActive {
		return nil
	}
	won, err := e.transition(p.ID, models.StatusActive, models.StatusReplied, nil)
	if err != nil || !won {
		return err
	}
	var personaID uint
	if p.AssignedPersonaID != nil {
		personaID = *p.AssignedPersonaID
	}
	e.logActivity(&models.ActivityLog{
		ProspectID: p.ID,
		PersonaID:  personaID,
		CampaignID: p.CurrentCampaignID,
		StepID:     p.CurrentStepID,
		Channel:    models.ChannelEmail,
		Action:     "Reply Received",
		Status:     models.ActivityCompleted,
		Details:    "prospect replied, sequence halted",
	})
	e.logger.WithField("prospect_id", p.ID).Info("prospect replied, sequence halted")
	return nil
}

// EnrollProspect locks a NEW prospect to a persona and starts it on step 1
// of the campaign, due immediately. The persona lock is permanent: once a
// prospect has ever been assigned an identity, enrolling it with a
// different one fails.
func (e *Engine) EnrollProspect(prospectID, campaignID, personaID uint) error {
	p, err := e.store.GetProspect(prospectID)
	if err != nil {
		return fmt.Errorf("loading prospect %d: %w", prospectID, err)
	}
	if p.AssignedPersonaID != nil && *p.AssignedPersonaID != personaID {
		return fmt.Errorf("prospect %d is locked to persona %d", p.ID, *p.AssignedPersonaID)
	}
	if p.Status != models.StatusNew {
		return fmt.Errorf("prospect %d cannot be enrolled from status %s", p.ID, p.Status)
	}
	if _, err := e.store.GetPersona(personaID); err != nil {
		return fmt.Errorf("loading persona %d: %w", personaID, err)
	}
	first, err := e.store.GetStepByNumber(campaignID, 1)
	if err != nil {
		return fmt.Errorf("looking up step 1 of campaign %d: %w", campaignID, err)
	}
	if first == nil {
		return fmt.Errorf("campaign %d has no steps", campaignID)
	}

	now := time.Now().UTC()
	won, err := e.transition(prospectID, models.StatusNew, models.StatusActive, map[string]interface{}{
		"assigned_persona_id": personaID,
		"locked_at":           now,
		"current_campaign_id": campaignID,
		"current_step_id":     first.ID,
		"next_step_due_at":    now,
	})
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("prospect %d was modified concurrently", prospectID)
	}
	e.logger.WithFields(logrus.Fields{
		"prospect_id": prospectID,
		"campaign_id": campaignID,
		"persona_id":  personaID,
	}).Info("prospect enrolled")
	return nil
}

// PauseProspect parks an ACTIVE prospect for manual review.
func (e *Engine) PauseProspect(prospectID uint) error {
	won, err := e.transition(prospectID, models.StatusActive, models.StatusPausedManualReview, nil)
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("prospect %d is not active", prospectID)
	}
	return nil
}

// ResumeProspect is the operator's lever out of PAUSED_MANUAL_REVIEW: the
// prospect returns to ACTIVE with its current step due immediately, so the
// next sweep retries it.
func (e *Engine) ResumeProspect(prospectID uint) error {
	won, err := e.transition(prospectID, models.StatusPausedManualReview, models.StatusActive, map[string]interface{}{
		"next_step_due_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("prospect %d is not paused for manual review", prospectID)
	}
	return nil
}

// UnsubscribeProspect opts a prospect out permanently from whatever
// non-terminal state it is in.
func (e *Engine) UnsubscribeProspect(prospectID uint) error {
	p, err := e.store.GetProspect(prospectID)
	if err != nil {
		return fmt.Errorf("loading prospect %d: %w", prospectID, err)
	}
	if p.Status.Terminal() {
		return fmt.Errorf("prospect %d is already in terminal status %s", p.ID, p.Status)
	}
	won, err := e.transition(p.ID, p.Status, models.StatusUnsubscribed, map[string]interface{}{
		"next_step_due_at": nil,
	})
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("prospect %d was modified concurrently", prospectID)
	}
	return nil
}
