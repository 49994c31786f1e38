package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"liquidreach/models"
	"liquidreach/utils"
)

type PersonaController struct {
	DB     *gorm.DB
	Crypt  *utils.Encryptor
	Logger *logrus.Logger
}

func NewPersonaController(db *gorm.DB, crypt *utils.Encryptor, logger *logrus.Logger) *PersonaController {
	return &PersonaController{
		DB:     db,
		Crypt:  crypt,
		Logger: logger,
	}
}

type personaInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	IsActive *bool  `json:"is_active"`

	FromEmail      string `json:"from_email" validate:"required,email"`
	SendGridAPIKey string `json:"sendgrid_api_key"`
	SMTPHost       string `json:"smtp_host"`
	SMTPPort       int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"smtp_password"`

	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"imap_password"`
	IMAPEncryption string `json:"imap_encryption" validate:"omitempty,oneof=SSL STARTTLS NONE"`

	AutomationAPIKey string `json:"automation_api_key"`
	AgentViewID      string `json:"agent_view_id"`
	AgentConnectID   string `json:"agent_connect_id"`
	AgentMessageID   string `json:"agent_message_id"`
}

// encryptSecrets encrypts every non-empty credential in place. Empty values
// stay empty so updates can leave existing secrets untouched.
func (pc *PersonaController) encryptSecrets(secrets ...*string) error {
	for _, s := range secrets {
		if *s == "" {
			continue
		}
		enc, err := pc.Crypt.Encrypt(*s)
		if err != nil {
			return err
		}
		*s = enc
	}
	return nil
}

// CreatePersona registers a new sending identity. Credentials are encrypted
// before the row is written and never returned in responses.
func (pc *PersonaController) CreatePersona(c *fiber.Ctx) error {
	var input personaInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := pc.encryptSecrets(&input.SendGridAPIKey, &input.SMTPPassword, &input.IMAPPassword, &input.AutomationAPIKey); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt credentials", err)
	}

	persona := models.Persona{
		Name:             input.Name,
		IsActive:         true,
		FromEmail:        input.FromEmail,
		SendGridAPIKey:   input.SendGridAPIKey,
		SMTPHost:         input.SMTPHost,
		SMTPPort:         input.SMTPPort,
		SMTPUsername:     input.SMTPUsername,
		SMTPPassword:     input.SMTPPassword,
		IMAPHost:         input.IMAPHost,
		IMAPPort:         input.IMAPPort,
		IMAPUsername:     input.IMAPUsername,
		IMAPPassword:     input.IMAPPassword,
		AutomationAPIKey: input.AutomationAPIKey,
		AgentViewID:      input.AgentViewID,
		AgentConnectID:   input.AgentConnectID,
		AgentMessageID:   input.AgentMessageID,
	}
	if input.IsActive != nil {
		persona.IsActive = *input.IsActive
	}
	if input.IMAPEncryption != "" {
		persona.IMAPEncryption = input.IMAPEncryption
	}

	if err := pc.DB.Create(&persona).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create persona", err)
	}

	pc.Logger.WithField("persona_id", persona.ID).Info("persona created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(persona))
}

func (pc *PersonaController) ListPersonas(c *fiber.Ctx) error {
	var personas []models.Persona
	if err := pc.DB.Order("id ASC").Find(&personas).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch personas", err)
	}
	return c.JSON(utils.SuccessResponse(personas))
}

func (pc *PersonaController) GetPersona(c *fiber.Ctx) error {
	var persona models.Persona
	if err := pc.DB.First(&persona, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Persona not found", nil)
	}
	return c.JSON(utils.SuccessResponse(persona))
}

// UpdatePersona applies a partial update. Credential fields left empty in
// the payload keep their stored (encrypted) value.
func (pc *PersonaController) UpdatePersona(c *fiber.Ctx) error {
	var persona models.Persona
	if err := pc.DB.First(&persona, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Persona not found", nil)
	}

	var input personaInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := pc.encryptSecrets(&input.SendGridAPIKey, &input.SMTPPassword, &input.IMAPPassword, &input.AutomationAPIKey); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt credentials", err)
	}

	persona.Name = input.Name
	persona.FromEmail = input.FromEmail
	persona.SMTPHost = input.SMTPHost
	persona.SMTPPort = input.SMTPPort
	persona.SMTPUsername = input.SMTPUsername
	persona.IMAPHost = input.IMAPHost
	persona.IMAPPort = input.IMAPPort
	persona.IMAPUsername = input.IMAPUsername
	persona.AgentViewID = input.AgentViewID
	persona.AgentConnectID = input.AgentConnectID
	persona.AgentMessageID = input.AgentMessageID
	if input.IsActive != nil {
		persona.IsActive = *input.IsActive
	}
	if input.IMAPEncryption != "" {
		persona.IMAPEncryption = input.IMAPEncryption
	}
	if input.SendGridAPIKey != "" {
		persona.SendGridAPIKey = input.SendGridAPIKey
	}
	if input.SMTPPassword != "" {
		persona.SMTPPassword = input.SMTPPassword
	}
	if input.IMAPPassword != "" {
		persona.IMAPPassword = input.IMAPPassword
	}
	if input.AutomationAPIKey != "" {
		persona.AutomationAPIKey = input.AutomationAPIKey
	}

	if err := pc.DB.Save(&persona).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update persona", err)
	}
	return c.JSON(utils.SuccessResponse(persona))
}

// DeletePersona soft-deletes an identity. Prospects locked to it keep their
// lock; their next step will skip with a config error until reassignment.
func (pc *PersonaController) DeletePersona(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	var persona models.Persona
	if err := pc.DB.First(&persona, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Persona not found", nil)
	}
	if err := pc.DB.Delete(&persona).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete persona", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": id}))
}
