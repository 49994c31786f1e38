package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"liquidreach/models"
)

// memStore is an in-memory Store for exercising the engine without a
// database. TransitionProspect mirrors the conditional-update semantics of
// the real store: the write only lands if the status still matches.
type memStore struct {
	mu         sync.Mutex
	prospects  map[uint]*models.Prospect
	steps      map[uint]*models.CampaignStep
	personas   map[uint]*models.Persona
	templates  map[uint]*models.Template
	activities []*models.ActivityLog
}

func newMemStore() *memStore {
	return &memStore{
		prospects: make(map[uint]*models.Prospect),
		steps:     make(map[uint]*models.CampaignStep),
		personas:  make(map[uint]*models.Persona),
		templates: make(map[uint]*models.Template),
	}
}

func (s *memStore) DueProspects(now time.Time, limit int) ([]models.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.Prospect
	for _, p := range s.prospects {
		if len(due) >= limit {
			break
		}
		if p.Status == models.StatusActive && p.NextStepDueAt != nil && !p.NextStepDueAt.After(now) {
			due = append(due, *p)
		}
	}
	return due, nil
}

func (s *memStore) GetProspect(id uint) (*models.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return nil, fmt.Errorf("prospect %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) FindProspectByEmail(email string) (*models.Prospect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prospects {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) TransitionProspect(id uint, from models.ProspectStatus, updates map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prospects[id]
	if !ok {
		return false, fmt.Errorf("prospect %d not found", id)
	}
	if p.Status != from {
		return false, nil
	}
	for col, v := range updates {
		switch col {
		case "status":
			p.Status = v.(models.ProspectStatus)
		case "current_step_id":
			p.CurrentStepID = optUint(v)
		case "current_campaign_id":
			p.CurrentCampaignID = optUint(v)
		case "assigned_persona_id":
			p.AssignedPersonaID = optUint(v)
		case "next_step_due_at":
			p.NextStepDueAt = optTime(v)
		case "locked_at":
			p.LockedAt = optTime(v)
		default:
			return false, fmt.Errorf("unexpected update column %q", col)
		}
	}
	return true, nil
}

func optUint(v interface{}) *uint {
	if v == nil {
		return nil
	}
	u := v.(uint)
	return &u
}

func optTime(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func (s *memStore) GetStep(id uint) (*models.CampaignStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[id]
	if !ok {
		return nil, fmt.Errorf("step %d not found", id)
	}
	cp := *step
	return &cp, nil
}

func (s *memStore) GetStepByNumber(campaignID uint, stepNumber int) (*models.CampaignStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, step := range s.steps {
		if step.CampaignID == campaignID && step.StepNumber == stepNumber {
			cp := *step
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetPersona(id uint) (*models.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, fmt.Errorf("persona %d not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) GetTemplate(id uint) (*models.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %d not found", id)
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) AppendActivity(entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uint(len(s.activities) + 1)
	s.activities = append(s.activities, entry)
	return nil
}

func (s *memStore) FindActivityByExternalID(externalID string) (*models.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.activities {
		if entry.ExternalID == externalID {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ResolveActivity(id uint, status models.ActivityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.activities {
		if entry.ID == id {
			entry.Status = status
			return nil
		}
	}
	return fmt.Errorf("activity %d not found", id)
}

func (s *memStore) activityByAction(action string) *models.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.activities {
		if entry.Action == action {
			cp := *entry
			return &cp
		}
	}
	return nil
}

func (s *memStore) activityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activities)
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string, _ models.EmailCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeLauncher struct {
	mu          sync.Mutex
	err         error
	containerID string
	launches    []AutomationLaunch
}

func (l *fakeLauncher) Launch(_ context.Context, launch AutomationLaunch) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	l.launches = append(l.launches, launch)
	return l.containerID, nil
}

func newTestEngine(t *testing.T) (*Engine, *memStore, *fakeMailer, *fakeLauncher) {
	t.Helper()
	store := newMemStore()
	mailer := &fakeMailer{}
	launcher := &fakeLauncher{containerID: "container-1"}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	eng := New(store, mailer, launcher, Config{
		WebhookBaseURL: "https://outreach.example.com",
	}, logger)
	return eng, store, mailer, launcher
}

// seedSequence installs a persona, two templates and a three-step campaign:
// email, connect request, profile view.
func seedSequence(store *memStore) {
	persona := &models.Persona{
		Name:             "Alex SDR",
		IsActive:         true,
		FromEmail:        "alex@outreach.example.com",
		SendGridAPIKey:   "SG.key",
		AutomationAPIKey: "pb-key",
		AgentViewID:      "agent-view",
		AgentConnectID:   "agent-connect",
		AgentMessageID:   "agent-message",
	}
	persona.ID = 1
	store.personas[1] = persona

	emailTmpl := &models.Template{
		Name:         "Intro Email",
		Channel:      models.ChannelEmail,
		EmailSubject: "Hi {{first_name}}",
		BodyText:     "Saw {{company}} is growing, {{first_name}}.",
	}
	emailTmpl.ID = 1
	store.templates[1] = emailTmpl

	connectTmpl := &models.Template{
		Name:     "Connect Note",
		Channel:  models.ChannelLinkedIn,
		BodyText: "Hi {{first_name}}, love what {{company}} is doing.",
	}
	connectTmpl.ID = 2
	store.templates[2] = connectTmpl

	steps := []*models.CampaignStep{
		{CampaignID: 1, StepNumber: 1, Channel: models.ChannelEmail, Action: models.ActionSendEmail, TemplateID: uintPtr(1), DelayDays: 0},
		{CampaignID: 1, StepNumber: 2, Channel: models.ChannelLinkedIn, Action: models.ActionSendConnect, TemplateID: uintPtr(2), DelayDays: 3},
		{CampaignID: 1, StepNumber: 3, Channel: models.ChannelLinkedIn, Action: models.ActionViewProfile, DelayDays: 2},
	}
	for i, step := range steps {
		step.ID = uint(i + 1)
		store.steps[step.ID] = step
	}
}

func uintPtr(v uint) *uint { return &v }

func seedProspect(store *memStore, id uint, status models.ProspectStatus, stepID uint) *models.Prospect {
	due := time.Now().UTC().Add(-time.Minute)
	p := &models.Prospect{
		FirstName:         "Dana",
		LastName:          "Reyes",
		Email:             fmt.Sprintf("dana%d@acme.example.com", id),
		LinkedInURL:       "https://linkedin.com/in/dana-reyes",
		Company:           "Acme",
		Title:             "VP Sales",
		Status:            status,
		AssignedPersonaID: uintPtr(1),
		CurrentCampaignID: uintPtr(1),
		CurrentStepID:     uintPtr(stepID),
		NextStepDueAt:     &due,
	}
	p.ID = id
	store.prospects[id] = p
	return p
}

func TestEmailStepAdvancesProspect(t *testing.T) {
	eng, store, mailer, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 1)

	require.NoError(t, eng.RunScheduler(context.Background()))

	require.Len(t, mailer.sent, 1)
	require.Equal(t, "dana1@acme.example.com", mailer.sent[0].to)
	require.Equal(t, "Hi Dana", mailer.sent[0].subject)
	require.Equal(t, "Saw Acme is growing, Dana.", mailer.sent[0].body)

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, p.Status)
	require.Equal(t, uint(2), *p.CurrentStepID)
	require.NotNil(t, p.NextStepDueAt)
	require.WithinDuration(t, time.Now().UTC().Add(3*24*time.Hour), *p.NextStepDueAt, 5*time.Second)

	sent := store.activityByAction("Email Sent")
	require.NotNil(t, sent)
	require.Equal(t, models.ActivityCompleted, sent.Status)
	require.NotEmpty(t, sent.ExternalID)
}

func TestEmailFailureParksForManualReview(t *testing.T) {
	eng, store, mailer, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 1)
	mailer.err = fmt.Errorf("sendgrid returned status 401")

	require.NoError(t, eng.RunScheduler(context.Background()))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusPausedManualReview, p.Status)
	// Position is kept so the operator can resume the same step.
	require.Equal(t, uint(1), *p.CurrentStepID)

	failed := store.activityByAction("Email Send Failed")
	require.NotNil(t, failed)
	require.Equal(t, models.ActivityFailed, failed.Status)
	require.Contains(t, failed.Details, "401")
}

func TestNetworkStepParksAwaitingWebhook(t *testing.T) {
	eng, store, _, launcher := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 2)

	require.NoError(t, eng.RunScheduler(context.Background()))

	require.Len(t, launcher.launches, 1)
	launch := launcher.launches[0]
	require.Equal(t, "agent-connect", launch.AgentID)
	require.Equal(t, "https://linkedin.com/in/dana-reyes", launch.ProfileURL)
	require.Equal(t, "Hi Dana, love what Acme is doing.", launch.Message)
	require.Equal(t, "https://outreach.example.com/api/v1/webhooks/automation/1", launch.WebhookURL)
	require.Equal(t, "pb-key", launch.APIKey)

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusPausedAwaitingWebhook, p.Status)

	pending, err := store.FindActivityByExternalID("container-1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	require.Equal(t, models.ActivityPending, pending.Status)
}

func TestLaunchFailureParksForManualReview(t *testing.T) {
	eng, store, _, launcher := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 2)
	launcher.err = fmt.Errorf("phantombuster returned status 500")

	require.NoError(t, eng.RunScheduler(context.Background()))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusPausedManualReview, p.Status)

	failed := store.activityByAction("LinkedIn SEND_CONNECT Failed")
	require.NotNil(t, failed)
	require.Equal(t, models.ActivityFailed, failed.Status)
}

func TestWebhookSuccessResumesProspect(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 2)
	require.NoError(t, eng.RunScheduler(context.Background()))

	require.NoError(t, eng.HandleAutomationWebhook("container-1", true, ""))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, p.Status)
	require.Equal(t, uint(3), *p.CurrentStepID)
	require.WithinDuration(t, time.Now().UTC().Add(2*24*time.Hour), *p.NextStepDueAt, 5*time.Second)

	resolved, err := store.FindActivityByExternalID("container-1")
	require.NoError(t, err)
	require.Equal(t, models.ActivityCompleted, resolved.Status)
}

func TestWebhookFailureParksForManualReview(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 2)
	require.NoError(t, eng.RunScheduler(context.Background()))

	require.NoError(t, eng.HandleAutomationWebhook("container-1", false, "profile not found"))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusPausedManualReview, p.Status)

	resolved, err := store.FindActivityByExternalID("container-1")
	require.NoError(t, err)
	require.Equal(t, models.ActivityFailed, resolved.Status)

	failure := store.activityByAction("Automation Step Failed")
	require.NotNil(t, failure)
	require.Contains(t, failure.Details, "profile not found")
}

func TestWebhookDuplicateIsNoOp(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 2)
	require.NoError(t, eng.RunScheduler(context.Background()))
	require.NoError(t, eng.HandleAutomationWebhook("container-1", true, ""))

	before := store.activityCount()
	p1, err := store.GetProspect(1)
	require.NoError(t, err)

	// A replayed callback must change nothing: the entry is already resolved.
	require.NoError(t, eng.HandleAutomationWebhook("container-1", false, "late duplicate"))

	p2, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, p1.Status, p2.Status)
	require.Equal(t, *p1.CurrentStepID, *p2.CurrentStepID)
	require.Equal(t, before, store.activityCount())
}

func TestWebhookUnknownContainerDiscarded(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 2)
	require.NoError(t, eng.RunScheduler(context.Background()))

	require.NoError(t, eng.HandleAutomationWebhook("never-seen", true, ""))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusPausedAwaitingWebhook, p.Status)
}

func TestFinalStepCompletesSequence(t *testing.T) {
	eng, store, _, launcher := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 3)
	launcher.containerID = "container-final"

	require.NoError(t, eng.RunScheduler(context.Background()))
	require.NoError(t, eng.HandleAutomationWebhook("container-final", true, ""))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, p.Status)
	require.Nil(t, p.CurrentStepID)
	require.Nil(t, p.NextStepDueAt)
}

func TestReplyHaltsActiveProspect(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 1)

	require.NoError(t, eng.HandleEmailReply("dana1@acme.example.com"))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusReplied, p.Status)
	require.NotNil(t, store.activityByAction("Reply Received"))

	// REPLIED is terminal; a second reply changes nothing.
	before := store.activityCount()
	require.NoError(t, eng.HandleEmailReply("dana1@acme.example.com"))
	require.Equal(t, before, store.activityCount())
}

func TestReplyIgnoredForNonActiveProspect(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusPausedAwaitingWebhook, 2)

	require.NoError(t, eng.HandleEmailReply("dana1@acme.example.com"))
	require.NoError(t, eng.HandleEmailReply("nobody@example.com"))

	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusPausedAwaitingWebhook, p.Status)
}

func TestConfigErrorSkipsProspectWithoutMutation(t *testing.T) {
	eng, store, mailer, _ := newTestEngine(t)
	seedSequence(store)

	// Prospect 1 points at a persona that does not exist; prospect 2 is fine.
	broken := seedProspect(store, 1, models.StatusActive, 1)
	broken.AssignedPersonaID = uintPtr(99)
	seedProspect(store, 2, models.StatusActive, 1)

	require.NoError(t, eng.RunScheduler(context.Background()))

	p1, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, p1.Status)
	require.Equal(t, uint(1), *p1.CurrentStepID)
	require.NotNil(t, p1.NextStepDueAt)

	// The broken prospect never blocks the rest of the batch.
	p2, err := store.GetProspect(2)
	require.NoError(t, err)
	require.Equal(t, uint(2), *p2.CurrentStepID)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "dana2@acme.example.com", mailer.sent[0].to)
}

func TestMissingAgentIDSkipsWithoutMutation(t *testing.T) {
	eng, store, _, launcher := newTestEngine(t)
	seedSequence(store)
	store.personas[1].AgentConnectID = ""
	seedProspect(store, 1, models.StatusActive, 2)

	require.NoError(t, eng.RunScheduler(context.Background()))

	require.Empty(t, launcher.launches)
	p, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, p.Status)
	require.Equal(t, uint(2), *p.CurrentStepID)
	require.Zero(t, store.activityCount())
}

func TestEnrollProspect(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)

	p := &models.Prospect{
		FirstName: "Sam",
		Email:     "sam@acme.example.com",
		Status:    models.StatusNew,
	}
	p.ID = 1
	store.prospects[1] = p

	require.NoError(t, eng.EnrollProspect(1, 1, 1))

	got, err := store.GetProspect(1)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)
	require.Equal(t, uint(1), *got.AssignedPersonaID)
	require.NotNil(t, got.LockedAt)
	require.Equal(t, uint(1), *got.CurrentCampaignID)
	require.Equal(t, uint(1), *got.CurrentStepID)
	require.WithinDuration(t, time.Now().UTC(), *got.NextStepDueAt, 5*time.Second)

	// Already ACTIVE: cannot enroll twice.
	require.Error(t, eng.EnrollProspect(1, 1, 1))
}

func TestEnrollRespectsPersonaLock(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)

	other := &models.Persona{Name: "Other", FromEmail: "other@outreach.example.com"}
	other.ID = 2
	store.personas[2] = other

	p := &models.Prospect{
		FirstName:         "Sam",
		Email:             "sam@acme.example.com",
		Status:            models.StatusNew,
		AssignedPersonaID: uintPtr(1),
	}
	p.ID = 1
	store.prospects[1] = p

	err := eng.EnrollProspect(1, 1, 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "locked to persona 1")
}

func TestPauseResumeUnsubscribe(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 1)

	require.NoError(t, eng.PauseProspect(1))
	p, _ := store.GetProspect(1)
	require.Equal(t, models.StatusPausedManualReview, p.Status)

	require.NoError(t, eng.ResumeProspect(1))
	p, _ = store.GetProspect(1)
	require.Equal(t, models.StatusActive, p.Status)
	require.WithinDuration(t, time.Now().UTC(), *p.NextStepDueAt, 5*time.Second)

	require.NoError(t, eng.UnsubscribeProspect(1))
	p, _ = store.GetProspect(1)
	require.Equal(t, models.StatusUnsubscribed, p.Status)
	require.Nil(t, p.NextStepDueAt)

	// Terminal: further controls fail.
	require.Error(t, eng.UnsubscribeProspect(1))
	require.Error(t, eng.PauseProspect(1))
}

func TestTerminalProspectNeverSelected(t *testing.T) {
	eng, store, mailer, _ := newTestEngine(t)
	seedSequence(store)
	p := seedProspect(store, 1, models.StatusReplied, 1)
	// Stale due timestamp left over from before the reply landed.
	stale := time.Now().UTC().Add(-time.Hour)
	p.NextStepDueAt = &stale

	require.NoError(t, eng.RunScheduler(context.Background()))
	require.Empty(t, mailer.sent)
}

func TestSchedulerHonorsBatchSize(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{}
	launcher := &fakeLauncher{containerID: "c"}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	eng := New(store, mailer, launcher, Config{
		WebhookBaseURL: "https://outreach.example.com",
		BatchSize:      2,
	}, logger)

	seedSequence(store)
	seedProspect(store, 1, models.StatusActive, 1)
	seedProspect(store, 2, models.StatusActive, 1)
	seedProspect(store, 3, models.StatusActive, 1)

	require.NoError(t, eng.RunScheduler(context.Background()))
	require.Len(t, mailer.sent, 2)
}

func TestZeroDelayStepIsImmediatelyDue(t *testing.T) {
	eng, store, mailer, launcher := newTestEngine(t)
	seedSequence(store)
	// Rewrite step 2 with no delay so it becomes due the moment step 1 lands.
	store.steps[2].DelayDays = 0
	seedProspect(store, 1, models.StatusActive, 1)

	require.NoError(t, eng.RunScheduler(context.Background()))
	require.Len(t, mailer.sent, 1)

	// The very next sweep picks the prospect up again.
	require.NoError(t, eng.RunScheduler(context.Background()))
	require.Len(t, launcher.launches, 1)
}
