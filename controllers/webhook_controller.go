package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"liquidreach/engine"
	"liquidreach/utils"
)

type WebhookController struct {
	Engine *engine.Engine
	Logger *logrus.Logger
}

func NewWebhookController(eng *engine.Engine, logger *logrus.Logger) *WebhookController {
	return &WebhookController{
		Engine: eng,
		Logger: logger,
	}
}

// HandleAutomationWebhook receives the completion callback for an
// asynchronous automation run. Correlation is by container id, not by the
// prospect id in the path; the path id is informational only, since the
// callback URL was minted at launch time and the prospect may have moved on.
// The endpoint always answers 200 so the agent platform never retries: an
// unknown container id is discarded on purpose.
func (wc *WebhookController) HandleAutomationWebhook(c *fiber.Ctx) error {
	var payload struct {
		ContainerID string `json:"containerId" validate:"required"`
		Status      string `json:"status" validate:"required,oneof=success error"`
		Error       string `json:"error"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}
	if err := utils.ValidateStruct(payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	wc.Logger.WithFields(logrus.Fields{
		"prospect_id":  c.Params("prospectID"),
		"container_id": payload.ContainerID,
		"status":       payload.Status,
	}).Info("automation webhook received")

	if err := wc.Engine.HandleAutomationWebhook(payload.ContainerID, payload.Status == "success", payload.Error); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process webhook", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"received": true}))
}

// HandleReplyWebhook receives an inbound-reply notification from an external
// email provider. Only ACTIVE prospects are halted; anything else is a no-op
// and still answered 200.
func (wc *WebhookController) HandleReplyWebhook(c *fiber.Ctx) error {
	var payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}
	if err := utils.ValidateStruct(payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := wc.Engine.HandleEmailReply(payload.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process reply", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"received": true}))
}
