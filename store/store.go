package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"liquidreach/models"
	"liquidreach/utils"
)

// GormStore is the Postgres-backed implementation of the engine's
// persistence boundary. Persona credentials are decrypted here and nowhere
// else.
type GormStore struct {
	db    *gorm.DB
	crypt *utils.Encryptor
}

func NewGormStore(db *gorm.DB, crypt *utils.Encryptor) *GormStore {
	return &GormStore{db: db, crypt: crypt}
}

func (s *GormStore) DueProspects(now time.Time, limit int) ([]models.Prospect, error) {
	var prospects []models.Prospect
	err := s.db.
		Where("status = ? AND next_step_due_at IS NOT NULL AND next_step_due_at <= ?", models.StatusActive, now).
		Limit(limit).
		Find(&prospects).Error
	if err != nil {
		return nil, fmt.Errorf("querying due prospects: %w", err)
	}
	return prospects, nil
}

func (s *GormStore) GetProspect(id uint) (*models.Prospect, error) {
	var p models.Prospect
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) FindProspectByEmail(email string) (*models.Prospect, error) {
	var p models.Prospect
	err := s.db.Where("email = ?", email).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionProspect is the single conditional update all state changes go
// through: the row only moves if its status still equals from. RowsAffected
// tells the caller whether it won the race.
func (s *GormStore) TransitionProspect(id uint, from models.ProspectStatus, updates map[string]interface{}) (bool, error) {
	res := s.db.Model(&models.Prospect{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) GetStep(id uint) (*models.CampaignStep, error) {
	var step models.CampaignStep
	if err := s.db.First(&step, id).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (s *GormStore) GetStepByNumber(campaignID uint, stepNumber int) (*models.CampaignStep, error) {
	var step models.CampaignStep
	err := s.db.Where("campaign_id = ? AND step_number = ?", campaignID, stepNumber).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (s *GormStore) GetPersona(id uint) (*models.Persona, error) {
	var p models.Persona
	if err := s.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	if err := s.decryptPersona(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ActivePersonas returns the decrypted personas whose inboxes the
// reply-detection worker should poll.
func (s *GormStore) ActivePersonas() ([]models.Persona, error) {
	var personas []models.Persona
	err := s.db.Where("is_active = ? AND imap_host <> ''", true).Find(&personas).Error
	if err != nil {
		return nil, err
	}
	for i := range personas {
		if err := s.decryptPersona(&personas[i]); err != nil {
			return nil, err
		}
	}
	return personas, nil
}

func (s *GormStore) decryptPersona(p *models.Persona) error {
	for _, field := range []*string{&p.SendGridAPIKey, &p.SMTPPassword, &p.IMAPPassword, &p.AutomationAPIKey} {
		plain, err := s.crypt.Decrypt(*field)
		if err != nil {
			return fmt.Errorf("decrypting credentials for persona %d: %w", p.ID, err)
		}
		*field = plain
	}
	return nil
}

func (s *GormStore) GetTemplate(id uint) (*models.Template, error) {
	var t models.Template
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) AppendActivity(entry *models.ActivityLog) error {
	return s.db.Create(entry).Error
}

func (s *GormStore) FindActivityByExternalID(externalID string) (*models.ActivityLog, error) {
	var entry models.ActivityLog
	err := s.db.Where("external_id = ?", externalID).Order("id ASC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *GormStore) ResolveActivity(id uint, status models.ActivityStatus) error {
	return s.db.Model(&models.ActivityLog{}).
		Where("id = ?", id).
		Update("status", status).Error
}
