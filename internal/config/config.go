package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	AppAPIKey   string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Redis       RedisConfig
	Sheets      SheetsConfig
	Sync        SyncConfig
	Airtable    AirtableConfig
	Mail        MailConfig
	Alerts      AlertsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL                    string
	MaxConns               int
	ConnMaxLifetimeMinutes int
	AutoMigrate            bool
}

// RabbitMQConfig holds the trigger queue and event exchange settings.
// An empty URL disables the AMQP trigger.
type RabbitMQConfig struct {
	URL               string
	TriggerExchange   string
	TriggerQueue      string
	TriggerRoutingKey string
	EventsExchange    string
	SyncRoutingKey    string
	AlertsRoutingKey  string
	DLQQueue          string
	PrefetchCount     int
}

// RedisConfig holds the run lock settings. An empty Addr disables locking.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockPrefix     string
	LockTTLSeconds int
}

// SheetsConfig holds the spreadsheet source settings
type SheetsConfig struct {
	Credentials   string
	SpreadsheetID string
	IndexRange    string
	QminRange     string
	ClientsRange  string
	UTCOffset     string
}

// SyncConfig holds the reconciliation window and batch settings
type SyncConfig struct {
	IndexLookbackDays   int
	QminWindowOlderDays int
	QminWindowNewerDays int
	ChunkSize           int
	TimeoutSeconds      int
	// Upsert refreshes existing rows instead of skipping them
	Upsert bool
}

// AirtableConfig holds the building directory settings
type AirtableConfig struct {
	AccessToken string
	BaseID      string
	Table       string
	PDSField    string
	NameField   string
	StatusField string
}

// MailConfig holds the mail sender settings
type MailConfig struct {
	Provider     string
	From         string
	Subject      string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	Concurrency  int
}

// AlertsConfig holds the alert report settings
type AlertsConfig struct {
	RulesFile      string
	AppURL         string
	ProfileURL     string
	TimeoutSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "water-metering-sync"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8080),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AppAPIKey:   getEnv("APP_API_KEY", ""),
		Database: DatabaseConfig{
			URL:                    getEnv("DATABASE_URL", ""),
			MaxConns:               getEnvAsInt("DATABASE_MAX_CONNS", 10),
			ConnMaxLifetimeMinutes: getEnvAsInt("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30),
			AutoMigrate:            getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               getEnv("RABBITMQ_URL", ""),
			TriggerExchange:   getEnv("RABBITMQ_TRIGGER_EXCHANGE", "water-metering.trigger.exchange"),
			TriggerQueue:      getEnv("RABBITMQ_TRIGGER_QUEUE", "water-metering.trigger.queue"),
			TriggerRoutingKey: getEnv("RABBITMQ_TRIGGER_ROUTING_KEY", "pds.job.requested"),
			EventsExchange:    getEnv("RABBITMQ_EVENTS_EXCHANGE", "water-metering.events.exchange"),
			SyncRoutingKey:    getEnv("RABBITMQ_SYNC_ROUTING_KEY", "pds.sync.completed"),
			AlertsRoutingKey:  getEnv("RABBITMQ_ALERTS_ROUTING_KEY", "pds.alerts.dispatched"),
			DLQQueue:          getEnv("RABBITMQ_DLQ_QUEUE", "water-metering.trigger.dlq"),
			PrefetchCount:     getEnvAsInt("RABBITMQ_PREFETCH", 1),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			LockPrefix:     getEnv("RUN_LOCK_PREFIX", "water-metering:lock:"),
			LockTTLSeconds: getEnvAsInt("RUN_LOCK_TTL_SECONDS", 900),
		},
		Sheets: SheetsConfig{
			Credentials:   getEnv("GOOGLE_CREDENTIALS", ""),
			SpreadsheetID: getEnv("SHEET_ID", ""),
			IndexRange:    getEnv("SHEET_INDEX_RANGE", "INDEX!A2:K"),
			QminRange:     getEnv("SHEET_QMIN_RANGE", "QMIN!A2:E"),
			ClientsRange:  getEnv("SHEET_CLIENTS_RANGE", "DONNEES CLIENT!A2:R"),
			UTCOffset:     getEnv("SHEET_UTC_OFFSET", "+02:00"),
		},
		Sync: SyncConfig{
			IndexLookbackDays:   getEnvAsInt("INDEX_LOOKBACK_DAYS", 40),
			QminWindowOlderDays: getEnvAsInt("QMIN_WINDOW_OLDER_DAYS", 42),
			QminWindowNewerDays: getEnvAsInt("QMIN_WINDOW_NEWER_DAYS", 2),
			ChunkSize:           getEnvAsInt("BATCH_CHUNK_SIZE", 1000),
			TimeoutSeconds:      getEnvAsInt("SYNC_TIMEOUT_SECONDS", 300),
			Upsert:              getEnvAsBool("SYNC_UPSERT", false),
		},
		Airtable: AirtableConfig{
			AccessToken: getEnv("AIRTABLE_ACCESS_TOKEN", ""),
			BaseID:      getEnv("AIRTABLE_BASE_ID", ""),
			Table:       getEnv("AIRTABLE_BUILDINGS_TABLE", "tblQeMdTYx3mDfWnU"),
			PDSField:    getEnv("AIRTABLE_PDS_FIELD", "// N° PDS"),
			NameField:   getEnv("AIRTABLE_NAME_FIELD", "ID interne"),
			StatusField: getEnv("AIRTABLE_STATUS_FIELD", "Statut missions"),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(getEnv("MAIL_PROVIDER", "resend")),
			From:         getEnv("MAIL_FROM", "Impact Copro <noreply@impact-copro.com>"),
			Subject:      getEnv("MAIL_SUBJECT", "Interface consommation : Notification de différentiel quotidien"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			Concurrency:  getEnvAsInt("MAIL_CONCURRENCY", 4),
		},
		Alerts: AlertsConfig{
			RulesFile:      getEnv("ALERT_RULES_FILE", ""),
			AppURL:         getEnv("APP_URL", "https://pds.impact-copro.com/"),
			ProfileURL:     getEnv("APP_PROFILE_URL", "https://pds.impact-copro.com/profile"),
			TimeoutSeconds: getEnvAsInt("ALERTS_TIMEOUT_SECONDS", 600),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.Sync.ChunkSize <= 0 {
		return nil, fmt.Errorf("BATCH_CHUNK_SIZE must be positive, got %d", cfg.Sync.ChunkSize)
	}
	if cfg.Sync.QminWindowNewerDays > cfg.Sync.QminWindowOlderDays {
		return nil, fmt.Errorf("QMIN_WINDOW_NEWER_DAYS (%d) must not exceed QMIN_WINDOW_OLDER_DAYS (%d)",
			cfg.Sync.QminWindowNewerDays, cfg.Sync.QminWindowOlderDays)
	}
	// A run outliving its lock lets a second run start
	if cfg.Redis.Addr != "" {
		for _, limit := range []struct {
			name    string
			seconds int
		}{
			{"SYNC_TIMEOUT_SECONDS", cfg.Sync.TimeoutSeconds},
			{"ALERTS_TIMEOUT_SECONDS", cfg.Alerts.TimeoutSeconds},
		} {
			if limit.seconds <= 0 || limit.seconds >= cfg.Redis.LockTTLSeconds {
				return nil, fmt.Errorf("%s must be between 1 and RUN_LOCK_TTL_SECONDS-1 (%d), got %d",
					limit.name, cfg.Redis.LockTTLSeconds-1, limit.seconds)
			}
		}
	}
	switch cfg.Mail.Provider {
	case MailProviderResend, MailProviderSMTP:
	default:
		return nil, fmt.Errorf("MAIL_PROVIDER must be %q or %q, got %q", MailProviderResend, MailProviderSMTP, cfg.Mail.Provider)
	}

	return cfg, nil
}

const (
	MailProviderResend = "resend"
	MailProviderSMTP   = "smtp"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}
