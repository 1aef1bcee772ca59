// Package config provides configuration structures and validation for the
// reconciliation services. Values come from defaults, an optional .env file and
// the environment, and are validated once at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration with settings for all components.
type Config struct {
	Application        ApplicationConfig
	Logging            LoggingConfig
	Server             ServerConfig
	Kafka              KafkaConfig
	Postgres           PostgresConfig
	MongoDB            MongoDBConfig
	Outbox             OutboxConfig
	WorkerPool         WorkerPoolConfig
	Webhook            WebhookConfig
	Provider           ProviderConfig
	Matching           MatchingConfig
	Polling            PollingConfig
	BalanceValidation  BalanceValidationConfig
	TopUp              TopUpConfig
	SegregatedAccounts []SegregatedAccount
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	PaymentEventTopic string // Normalized events whose ingestion failed and must be retried
	AlertTopic        string // Critical pages relayed from the alert outbox
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains alert outbox relay configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// WebhookConfig controls the provider webhook endpoint.
type WebhookConfig struct {
	Secret           string        // HMAC secret; empty disables signature verification
	SignatureHeader  string        // Header carrying the hex HMAC-SHA256 of the raw body
	ProcessingBudget time.Duration // Longest the ack waits for ingestion to finish
}

// ProviderConfig contains banking provider API settings
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // Per-request bound on provider calls
}

// MatchingConfig contains matcher settings
type MatchingConfig struct {
	Tolerance decimal.Decimal // Allowed amount difference in currency units
}

// PollingConfig contains polling recovery job settings
type PollingConfig struct {
	Interval        time.Duration
	LookBack        time.Duration
	Timeout         time.Duration
	ProximityWindow time.Duration // Zero disables booking-time disambiguation
}

// BalanceValidationConfig contains balance validator job settings
type BalanceValidationConfig struct {
	Interval  time.Duration
	Timeout   time.Duration
	Tolerance decimal.Decimal // Allowed provider vs local difference in currency units
}

// TopUpConfig contains top-up request lifecycle settings
type TopUpConfig struct {
	TTL                 time.Duration
	ExpirySweepInterval time.Duration
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.PaymentEventTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_PAYMENT_EVENT_TOPIC is required")
	}
	if c.Kafka.AlertTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_ALERT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Webhook config
	if c.Webhook.SignatureHeader == "" {
		validationErrors = append(validationErrors, "WEBHOOK_SIGNATURE_HEADER is required")
	}
	if c.Webhook.ProcessingBudget <= 0 {
		validationErrors = append(validationErrors, "WEBHOOK_PROCESSING_BUDGET must be greater than 0")
	}

	// Validate Provider config
	if c.Provider.BaseURL == "" {
		validationErrors = append(validationErrors, "PROVIDER_BASE_URL is required")
	}
	if c.Provider.Timeout <= 0 {
		validationErrors = append(validationErrors, "PROVIDER_TIMEOUT must be greater than 0")
	}

	if c.Matching.Tolerance.IsNegative() {
		validationErrors = append(validationErrors, "MATCH_TOLERANCE must not be negative")
	}

	// Validate job schedules
	if c.Polling.Interval <= 0 {
		validationErrors = append(validationErrors, "POLLING_INTERVAL must be greater than 0")
	}
	if c.Polling.LookBack < 2*c.Polling.Interval {
		validationErrors = append(validationErrors, "POLLING_LOOKBACK must be at least twice POLLING_INTERVAL")
	}
	if c.Polling.Timeout <= 0 {
		validationErrors = append(validationErrors, "POLLING_TIMEOUT must be greater than 0")
	}
	if c.Polling.ProximityWindow < 0 {
		validationErrors = append(validationErrors, "POLLING_PROXIMITY_WINDOW must not be negative")
	}
	if c.BalanceValidation.Interval <= 0 {
		validationErrors = append(validationErrors, "BALANCE_VALIDATION_INTERVAL must be greater than 0")
	}
	if c.BalanceValidation.Timeout <= 0 {
		validationErrors = append(validationErrors, "BALANCE_VALIDATION_TIMEOUT must be greater than 0")
	}
	if c.BalanceValidation.Tolerance.IsNegative() {
		validationErrors = append(validationErrors, "BALANCE_VALIDATION_TOLERANCE cannot be negative")
	}
	if c.TopUp.TTL <= 0 {
		validationErrors = append(validationErrors, "TOPUP_TTL must be greater than 0")
	}
	if c.TopUp.ExpirySweepInterval <= 0 {
		validationErrors = append(validationErrors, "TOPUP_EXPIRY_SWEEP_INTERVAL must be greater than 0")
	}

	seen := make(map[string]struct{}, len(c.SegregatedAccounts))
	for _, sa := range c.SegregatedAccounts {
		if _, dup := seen[sa.ID]; dup {
			validationErrors = append(validationErrors, fmt.Sprintf("SEGREGATED_ACCOUNTS lists %q more than once", sa.ID))
		}
		seen[sa.ID] = struct{}{}
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
