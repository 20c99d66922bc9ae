package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration, loaded from environment variables.
// It is constructed once in main and passed down; nothing reads the
// environment after Load returns.
type Config struct {
	DatabaseURL string

	// Telegram
	BotToken string

	// HTTP surfaces
	HTTPPort    int
	MetricsPort int

	// Economy
	StartingPredBalance decimal.Decimal
	ReferralBonusPred   decimal.Decimal
	CommissionPred      decimal.Decimal
	CommissionTon       decimal.Decimal
	TonToPredRate       int64
	MinDepositTon       decimal.Decimal
	MaxDepositTon       decimal.Decimal

	// Notification queue / delivery worker
	QueueBatchSize     int
	QueuePollInterval  time.Duration
	QueueMaxAttempts   int
	QueueRetentionDays int
	QueueReclaimAfter  time.Duration
	SendDelay          time.Duration
	BatchPauseEvery    int
	BatchPauseDuration time.Duration

	// Optional infrastructure
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from the environment, applying defaults where
// variables are unset, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		BotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),

		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		MetricsPort: getEnvInt("METRICS_PORT", 9090),

		StartingPredBalance: getEnvDecimal("STARTING_PRED_BALANCE", "1000"),
		ReferralBonusPred:   getEnvDecimal("REFERRAL_BONUS_PRED", "100"),
		CommissionPred:      getEnvDecimal("COMMISSION_PRED", "0.01"),
		CommissionTon:       getEnvDecimal("COMMISSION_TON", "0.05"),
		TonToPredRate:       getEnvInt64("TON_TO_PRED_RATE", 1000),
		MinDepositTon:       getEnvDecimal("MIN_DEPOSIT_TON", "0.1"),
		MaxDepositTon:       getEnvDecimal("MAX_DEPOSIT_TON", "1000"),

		QueueBatchSize:     getEnvInt("QUEUE_BATCH_SIZE", 10),
		QueuePollInterval:  getEnvDuration("QUEUE_POLL_INTERVAL", time.Second),
		QueueMaxAttempts:   getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
		QueueRetentionDays: getEnvInt("QUEUE_RETENTION_DAYS", 7),
		QueueReclaimAfter:  getEnvDuration("QUEUE_RECLAIM_AFTER", 10*time.Minute),
		SendDelay:          getEnvDuration("SEND_DELAY", 500*time.Millisecond),
		BatchPauseEvery:    getEnvInt("BATCH_PAUSE_EVERY", 20),
		BatchPauseDuration: getEnvDuration("BATCH_PAUSE_DURATION", 5*time.Second),

		RedisAddr:  os.Getenv("REDIS_ADDR"),
		KafkaTopic: getEnvString("KAFKA_TOPIC", "predmarket.events"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.TonToPredRate <= 0 {
		return fmt.Errorf("TON_TO_PRED_RATE must be positive, got %d", c.TonToPredRate)
	}
	if c.CommissionPred.IsNegative() || c.CommissionPred.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("COMMISSION_PRED must be in [0, 1), got %s", c.CommissionPred)
	}
	if c.CommissionTon.IsNegative() || c.CommissionTon.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("COMMISSION_TON must be in [0, 1), got %s", c.CommissionTon)
	}
	if c.QueueBatchSize <= 0 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be positive, got %d", c.QueueBatchSize)
	}
	if c.QueueMaxAttempts <= 0 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be positive, got %d", c.QueueMaxAttempts)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return decimal.RequireFromString(defaultValue)
}
