package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"liquidreach/models"
	"liquidreach/utils"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewCampaignController(db *gorm.DB, logger *logrus.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
	}
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input struct {
		Name        string `json:"name" validate:"required,max=200"`
		Description string `json:"description" validate:"omitempty,max=1000"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	campaign := models.Campaign{
		Name:        input.Name,
		Description: input.Description,
		Status:      "DRAFT",
	}
	if err := cc.DB.Create(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) ListCampaigns(c *fiber.Ctx) error {
	var campaigns []models.Campaign
	if err := cc.DB.Order("id ASC").Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}
	return c.JSON(utils.SuccessResponse(campaigns))
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	err := cc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("step_number ASC")
	}).First(&campaign, utils.ParseUint(c.Params("id"))).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, utils.ParseUint(c.Params("id"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		Name        string `json:"name" validate:"omitempty,max=200"`
		Description string `json:"description" validate:"omitempty,max=1000"`
		Status      string `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE ARCHIVED"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if input.Name != "" {
		campaign.Name = input.Name
	}
	if input.Description != "" {
		campaign.Description = input.Description
	}
	if input.Status != "" {
		campaign.Status = input.Status
	}

	if err := cc.DB.Save(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// DeleteCampaign removes a sequence that no prospect is enrolled in.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, id).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var enrolled int64
	if err := cc.DB.Model(&models.Prospect{}).Where("current_campaign_id = ?", id).Count(&enrolled).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check enrollments", err)
	}
	if enrolled > 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign has enrolled prospects", nil)
	}

	if err := cc.DB.Where("campaign_id = ?", id).Delete(&models.CampaignStep{}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign steps", err)
	}
	if err := cc.DB.Delete(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": id}))
}

// AddStep appends a step to a campaign. Numbering stays contiguous: the new
// step is always count+1, the first step's delay is forced to 0, and the
// action must belong to the step's channel.
func (cc *CampaignController) AddStep(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	var input struct {
		Channel    models.Channel    `json:"channel" validate:"required,oneof=EMAIL LINKEDIN"`
		Action     models.StepAction `json:"action" validate:"required,oneof=SEND_EMAIL VIEW_PROFILE SEND_CONNECT SEND_MESSAGE"`
		TemplateID *uint             `json:"template_id"`
		DelayDays  int               `json:"delay_days" validate:"min=0,max=365"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if !input.Action.ValidFor(input.Channel) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Action does not belong to channel", nil)
	}
	if input.Action == models.ActionSendEmail && input.TemplateID == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "SEND_EMAIL steps require a template", nil)
	}
	if input.TemplateID != nil {
		var tmpl models.Template
		if err := cc.DB.First(&tmpl, *input.TemplateID).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Template not found", nil)
		}
		if tmpl.Channel != input.Channel {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Template belongs to a different channel", nil)
		}
	}

	var count int64
	if err := cc.DB.Model(&models.CampaignStep{}).Where("campaign_id = ?", campaignID).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count steps", err)
	}

	step := models.CampaignStep{
		CampaignID: campaignID,
		StepNumber: int(count) + 1,
		Channel:    input.Channel,
		Action:     input.Action,
		TemplateID: input.TemplateID,
		DelayDays:  input.DelayDays,
	}
	if step.StepNumber == 1 {
		step.DelayDays = 0
	}

	if err := cc.DB.Create(&step).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create step", err)
	}

	cc.Logger.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"step_number": step.StepNumber,
		"action":      step.Action,
	}).Info("campaign step added")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(step))
}
