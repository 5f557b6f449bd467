package config

import (
	"strings"
	"time"

	"leadmarket-backend/internal/application/claims"
	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/application/verification"
	"leadmarket-backend/internal/infrastructure/database"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	SendinblueAPIKey    string // SENDINBLUE_API_KEY for notification emails (Brevo)
	MailFrom            string

	ClaimCostDefault    int64
	TxMaxAttempts       int
	TxTimeout           time.Duration
	TxInitialBackoff    time.Duration
	TxMaxBackoff        time.Duration
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxRetries    int
	VerificationCodeTTL time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return &Config{
		Env:                 v.GetString("APP_ENV"),
		Port:                v.GetString("PORT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisURL:            v.GetString("REDIS_URL"),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   v.GetBool("ALLOW_CROSS_SITE_DEV"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		SendinblueAPIKey:    v.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            v.GetString("MAIL_FROM"),

		ClaimCostDefault:    v.GetInt64("CLAIM_COST_DEFAULT"),
		TxMaxAttempts:       v.GetInt("TX_MAX_ATTEMPTS"),
		TxTimeout:           v.GetDuration("TX_TIMEOUT"),
		TxInitialBackoff:    v.GetDuration("TX_INITIAL_BACKOFF"),
		TxMaxBackoff:        v.GetDuration("TX_MAX_BACKOFF"),
		OutboxPollInterval:  v.GetDuration("OUTBOX_POLL_INTERVAL"),
		OutboxBatchSize:     v.GetInt("OUTBOX_BATCH_SIZE"),
		OutboxMaxRetries:    v.GetInt("OUTBOX_MAX_RETRIES"),
		VerificationCodeTTL: v.GetDuration("VERIFICATION_CODE_TTL"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	tx := database.DefaultTxPolicy()
	relay := notifications.DefaultRelayConfig()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAIL_FROM", "noreply@leadmarket.example")
	v.SetDefault("CLAIM_COST_DEFAULT", claims.DefaultClaimCost)
	v.SetDefault("TX_MAX_ATTEMPTS", tx.MaxAttempts)
	v.SetDefault("TX_TIMEOUT", tx.Timeout)
	v.SetDefault("TX_INITIAL_BACKOFF", tx.InitialBackoff)
	v.SetDefault("TX_MAX_BACKOFF", tx.MaxBackoff)
	v.SetDefault("OUTBOX_POLL_INTERVAL", relay.Interval)
	v.SetDefault("OUTBOX_BATCH_SIZE", relay.BatchSize)
	v.SetDefault("OUTBOX_MAX_RETRIES", relay.MaxRetries)
	v.SetDefault("VERIFICATION_CODE_TTL", verification.DefaultTTL)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TxPolicy is the retry/timeout policy for every state-changing transaction.
func (c *Config) TxPolicy() database.TxPolicy {
	return database.TxPolicy{
		MaxAttempts:    c.TxMaxAttempts,
		Timeout:        c.TxTimeout,
		InitialBackoff: c.TxInitialBackoff,
		MaxBackoff:     c.TxMaxBackoff,
	}
}

func (c *Config) RelayConfig() notifications.RelayConfig {
	cfg := notifications.DefaultRelayConfig()
	cfg.Interval = c.OutboxPollInterval
	cfg.BatchSize = c.OutboxBatchSize
	cfg.MaxRetries = c.OutboxMaxRetries
	return cfg
}
