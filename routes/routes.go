package routes

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "liquidreach/controllers"
	"liquidreach/engine"
	"liquidreach/utils"
)

// SetupRoutes wires the HTTP surface: webhook endpoints consumed by external
// platforms plus the operator CRUD for personas, prospects, campaigns and
// templates.
func SetupRoutes(app *fiber.App, db *gorm.DB, eng *engine.Engine, crypt *utils.Encryptor, logger *logrus.Logger) {
	personaCtrl := controller.NewPersonaController(db, crypt, logger)
	prospectCtrl := controller.NewProspectController(db, eng, logger)
	campaignCtrl := controller.NewCampaignController(db, logger)
	templateCtrl := controller.NewTemplateController(db, logger)
	webhookCtrl := controller.NewWebhookController(eng, logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Webhooks are called by external platforms and carry their own
	// correlation keys; they are deliberately unauthenticated here.
	webhooks := api.Group("/webhooks")
	webhooks.Post("/automation/:prospectID", webhookCtrl.HandleAutomationWebhook)
	webhooks.Post("/replies", webhookCtrl.HandleReplyWebhook)

	personas := api.Group("/personas")
	personas.Post("/", personaCtrl.CreatePersona)
	personas.Get("/", personaCtrl.ListPersonas)
	personas.Get("/:id", personaCtrl.GetPersona)
	personas.Put("/:id", personaCtrl.UpdatePersona)
	personas.Delete("/:id", personaCtrl.DeletePersona)

	prospects := api.Group("/prospects")
	prospects.Post("/", prospectCtrl.CreateProspect)
	prospects.Post("/import", prospectCtrl.ImportProspects)
	prospects.Get("/", prospectCtrl.ListProspects)
	prospects.Get("/:id", prospectCtrl.GetProspect)
	prospects.Post("/:id/enroll", prospectCtrl.EnrollProspect)
	prospects.Post("/:id/control", prospectCtrl.ControlProspect)
	prospects.Get("/:id/activities", prospectCtrl.GetActivities)

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", campaignCtrl.CreateCampaign)
	campaigns.Get("/", campaignCtrl.ListCampaigns)
	campaigns.Get("/:id", campaignCtrl.GetCampaign)
	campaigns.Put("/:id", campaignCtrl.UpdateCampaign)
	campaigns.Delete("/:id", campaignCtrl.DeleteCampaign)
	campaigns.Post("/:id/steps", campaignCtrl.AddStep)

	templates := api.Group("/templates")
	templates.Post("/", templateCtrl.CreateTemplate)
	templates.Get("/", templateCtrl.ListTemplates)
	templates.Get("/:id", templateCtrl.GetTemplate)
	templates.Put("/:id", templateCtrl.UpdateTemplate)
	templates.Delete("/:id", templateCtrl.DeleteTemplate)

	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Route not found", nil)
	})

	logger.Info("routes initialized")
}
