package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"liquidreach/models"
	"liquidreach/utils"
)

type TemplateController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewTemplateController(db *gorm.DB, logger *logrus.Logger) *TemplateController {
	return &TemplateController{
		DB:     db,
		Logger: logger,
	}
}

type templateInput struct {
	Name         string         `json:"name" validate:"required,max=200"`
	Channel      models.Channel `json:"channel" validate:"required,oneof=EMAIL LINKEDIN"`
	EmailSubject string         `json:"email_subject" validate:"omitempty,max=500"`
	BodyText     string         `json:"body_text" validate:"required"`
}

func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	var input templateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.Channel == models.ChannelEmail && input.EmailSubject == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email templates require a subject", nil)
	}

	tmpl := models.Template{
		Name:         input.Name,
		Channel:      input.Channel,
		EmailSubject: input.EmailSubject,
		BodyText:     input.BodyText,
	}
	if err := tc.DB.Create(&tmpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create template", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(tmpl))
}

func (tc *TemplateController) ListTemplates(c *fiber.Ctx) error {
	q := tc.DB.Order("id ASC")
	if channel := c.Query("channel"); channel != "" {
		q = q.Where("channel = ?", channel)
	}
	var templates []models.Template
	if err := q.Find(&templates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch templates", err)
	}
	return c.JSON(utils.SuccessResponse(templates))
}

func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	var tmpl models.Template
	if err := tc.DB.First(&tmpl, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Template not found", nil)
	}
	return c.JSON(utils.SuccessResponse(tmpl))
}

func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	var tmpl models.Template
	if err := tc.DB.First(&tmpl, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Template not found", nil)
	}

	var input templateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	tmpl.Name = input.Name
	tmpl.Channel = input.Channel
	tmpl.EmailSubject = input.EmailSubject
	tmpl.BodyText = input.BodyText

	if err := tc.DB.Save(&tmpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update template", err)
	}
	return c.JSON(utils.SuccessResponse(tmpl))
}

// DeleteTemplate removes a template not referenced by any campaign step.
func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	var tmpl models.Template
	if err := tc.DB.First(&tmpl, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Template not found", nil)
	}

	var refs int64
	if err := tc.DB.Model(&models.CampaignStep{}).Where("template_id = ?", id).Count(&refs).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check references", err)
	}
	if refs > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Template is used by campaign steps", nil)
	}

	if err := tc.DB.Delete(&tmpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete template", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": id}))
}
