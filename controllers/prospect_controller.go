package controller

import (
	"strings"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"liquidreach/engine"
	"liquidreach/models"
	"liquidreach/utils"
)

type ProspectController struct {
	DB     *gorm.DB
	Engine *engine.Engine
	Logger *logrus.Logger
}

func NewProspectController(db *gorm.DB, eng *engine.Engine, logger *logrus.Logger) *ProspectController {
	return &ProspectController{
		DB:     db,
		Engine: eng,
		Logger: logger,
	}
}

type prospectInput struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"omitempty,max=100"`
	Email       string `json:"email" validate:"required,email"`
	LinkedInURL string `json:"linkedin_url" validate:"omitempty,url"`
	Company     string `json:"company" validate:"omitempty,max=200"`
	Title       string `json:"title" validate:"omitempty,max=200"`
}

func (pc *ProspectController) CreateProspect(c *fiber.Ctx) error {
	var input prospectInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	prospect, err := pc.insertProspect(input)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Prospect already exists", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(prospect))
}

// ImportProspects bulk-creates prospects, deduplicating on email and on
// LinkedIn URL. Invalid or duplicate rows are reported back, never imported.
func (pc *ProspectController) ImportProspects(c *fiber.Ctx) error {
	var input struct {
		Prospects []prospectInput `json:"prospects" validate:"required,min=1,dive"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	imported := make([]models.Prospect, 0, len(input.Prospects))
	skipped := make([]fiber.Map, 0)
	for _, row := range input.Prospects {
		if err := checkmail.ValidateFormat(row.Email); err != nil {
			skipped = append(skipped, fiber.Map{"email": row.Email, "reason": "invalid email format"})
			continue
		}
		prospect, err := pc.insertProspect(row)
		if err != nil {
			skipped = append(skipped, fiber.Map{"email": row.Email, "reason": "duplicate"})
			continue
		}
		imported = append(imported, *prospect)
	}

	pc.Logger.WithFields(logrus.Fields{
		"imported": len(imported),
		"skipped":  len(skipped),
	}).Info("prospect import finished")

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"imported": imported,
		"skipped":  skipped,
	}))
}

func (pc *ProspectController) insertProspect(input prospectInput) (*models.Prospect, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var count int64
	q := pc.DB.Model(&models.Prospect{}).Where("email = ?", email)
	if input.LinkedInURL != "" {
		q = pc.DB.Model(&models.Prospect{}).Where("email = ? OR linkedin_url = ?", email, input.LinkedInURL)
	}
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, gorm.ErrDuplicatedKey
	}

	prospect := models.Prospect{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       email,
		LinkedInURL: input.LinkedInURL,
		Company:     input.Company,
		Title:       input.Title,
		Status:      models.StatusNew,
	}
	if err := pc.DB.Create(&prospect).Error; err != nil {
		return nil, err
	}
	return &prospect, nil
}

func (pc *ProspectController) ListProspects(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	q := pc.DB.Model(&models.Prospect{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", strings.ToUpper(status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count prospects", err)
	}

	var prospects []models.Prospect
	if err := q.Order("id ASC").Offset((page - 1) * limit).Limit(limit).Find(&prospects).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch prospects", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  prospects,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (pc *ProspectController) GetProspect(c *fiber.Ctx) error {
	var prospect models.Prospect
	if err := pc.DB.First(&prospect, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
	}
	return c.JSON(utils.SuccessResponse(prospect))
}

// EnrollProspect locks a NEW prospect to a persona and starts it on step 1
// of a campaign, due immediately.
func (pc *ProspectController) EnrollProspect(c *fiber.Ctx) error {
	var input struct {
		CampaignID uint `json:"campaign_id" validate:"required"`
		PersonaID  uint `json:"persona_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	prospectID := utils.ParseUint(c.Params("id"))
	if err := pc.Engine.EnrollProspect(prospectID, input.CampaignID, input.PersonaID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Enrollment failed", err)
	}

	var prospect models.Prospect
	if err := pc.DB.First(&prospect, prospectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reload prospect", err)
	}
	return c.JSON(utils.SuccessResponse(prospect))
}

// ControlProspect is the operator's manual lever over a running sequence.
func (pc *ProspectController) ControlProspect(c *fiber.Ctx) error {
	var input struct {
		Action string `json:"action" validate:"required,oneof=PAUSE UNPAUSE RETRY_STEP UNSUBSCRIBE"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	prospectID := utils.ParseUint(c.Params("id"))

	var err error
	switch input.Action {
	case "PAUSE":
		err = pc.Engine.PauseProspect(prospectID)
	case "UNPAUSE", "RETRY_STEP":
		err = pc.Engine.ResumeProspect(prospectID)
	case "UNSUBSCRIBE":
		err = pc.Engine.UnsubscribeProspect(prospectID)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Control action failed", err)
	}

	var prospect models.Prospect
	if err := pc.DB.First(&prospect, prospectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reload prospect", err)
	}
	return c.JSON(utils.SuccessResponse(prospect))
}

// GetActivities returns the prospect's full timeline, newest first.
func (pc *ProspectController) GetActivities(c *fiber.Ctx) error {
	prospectID := utils.ParseUint(c.Params("id"))
	var prospect models.Prospect
	if err := pc.DB.First(&prospect, prospectID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Prospect not found", nil)
	}

	var activities []models.ActivityLog
	if err := pc.DB.Where("prospect_id = ?", prospectID).Order("id DESC").Find(&activities).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", err)
	}
	return c.JSON(utils.SuccessResponse(activities))
}
