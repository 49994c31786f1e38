package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"liquidreach/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	EncryptionKey string `json:"-"`
	SentryDSN     string `json:"-"`

	// WebhookBaseURL is the externally reachable base the automation platform
	// calls back on; it must resolve to this service from the public internet.
	WebhookBaseURL string `json:"webhook_base_url"`

	SchedulerInterval  time.Duration `json:"scheduler_interval"`
	SchedulerBatchSize int           `json:"scheduler_batch_size"`
	ReplyPollInterval  time.Duration `json:"reply_poll_interval"`
	TransportTimeout   time.Duration `json:"transport_timeout"`
}

func init() {
	// Try to load .env, but don't fail if it doesn't exist.
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "liquidreach"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),

		WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", "http://localhost:5000"),

		SchedulerInterval:  getEnvAsDuration("SCHEDULER_INTERVAL", time.Minute),
		SchedulerBatchSize: getEnvAsInt("SCHEDULER_BATCH_SIZE", 100),
		ReplyPollInterval:  getEnvAsDuration("REPLY_POLL_INTERVAL", 5*time.Minute),
		TransportTimeout:   getEnvAsDuration("TRANSPORT_TIMEOUT", 30*time.Second),
	}

	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch len(AppConfig.EncryptionKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes, got %d", len(AppConfig.EncryptionKey))
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := migrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Persona{},
		&models.Template{},
		&models.Campaign{},
		&models.CampaignStep{},
		&models.Prospect{},
		&models.ActivityLog{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}
	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Webhook base URL: %s", AppConfig.WebhookBaseURL)
	log.Printf("Scheduler: every %s, batch %d",
		AppConfig.SchedulerInterval,
		AppConfig.SchedulerBatchSize)
}
