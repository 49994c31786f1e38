package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"liquidreach/config"
	"liquidreach/engine"
	"liquidreach/middleware"
	"liquidreach/routes"
	"liquidreach/store"
	"liquidreach/utils"
	"liquidreach/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	crypt, err := utils.NewEncryptor(config.AppConfig.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize encryption: %v", err)
	}

	gormStore := store.NewGormStore(config.DB, crypt)
	mailer := utils.NewOutreachMailer(config.AppConfig.TransportTimeout)
	launcher := utils.NewPhantombusterClient(config.AppConfig.TransportTimeout)

	eng := engine.New(gormStore, mailer, launcher, engine.Config{
		WebhookBaseURL: config.AppConfig.WebhookBaseURL,
		BatchSize:      config.AppConfig.SchedulerBatchSize,
		StepTimeout:    config.AppConfig.TransportTimeout,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator := worker.NewOrchestratorWorker(eng, config.AppConfig.SchedulerInterval, logger)
	go orchestrator.Start(ctx)

	replies := worker.NewReplyWorker(gormStore, eng, config.AppConfig.ReplyPollInterval, logger)
	go replies.Start(ctx)

	app := fiber.New()
	app.Use(middleware.CORS())
	routes.SetupRoutes(app, config.DB, eng, crypt, logger)

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
