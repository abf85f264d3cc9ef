// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// PortalBaseURL is the public base URL used when building request-page links (e.g. https://portal.example.com).
	PortalBaseURL string `mapstructure:"PORTAL_BASE_URL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs staff access tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "portal-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "portal-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the staff access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTPTTL is the one-time passcode lifetime (e.g. "15m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts is the verify-attempt budget before a challenge locks.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPCooldown is the minimum spacing between OTP requests for the same email+org (e.g. "60s").
	OTPCooldown string `mapstructure:"OTP_COOLDOWN"`
	// OTPEchoEnabled when true stores issued codes for GET /dev/otp instead of relying on email
	// delivery alone. Must not be true when Env is production (Load returns an error).
	OTPEchoEnabled bool `mapstructure:"OTP_ECHO_ENABLED"`
	// SessionGrace is added to OTPTTL for the verified-session lifetime (e.g. "5m").
	SessionGrace string `mapstructure:"SESSION_GRACE"`
	// SLADays is the number of days from submission to the request completion due date.
	SLADays int `mapstructure:"SLA_DAYS"`

	// MailAPIKey is the transactional mail provider API key.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`
	// MailBaseURL is the mail provider API base URL.
	MailBaseURL string `mapstructure:"MAIL_BASE_URL"`
	// MailFrom is the sender address for all portal mail.
	MailFrom string `mapstructure:"MAIL_FROM"`
	// MailTestMode when true logs mail to stdout instead of calling the provider.
	// Must not be true when Env is production (Load returns an error).
	MailTestMode bool `mapstructure:"MAIL_TEST_MODE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint enables OTLP trace export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`

	// EventsKafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables event emission.
	EventsKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the Kafka topic for portal events (default portal-events).
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the events worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the events worker pushes logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PORTAL_BASE_URL", "http://localhost:8080")
	v.SetDefault("JWT_ISSUER", "portal-auth")
	v.SetDefault("JWT_AUDIENCE", "portal-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "15m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_COOLDOWN", "60s")
	v.SetDefault("OTP_ECHO_ENABLED", false)
	v.SetDefault("SESSION_GRACE", "5m")
	v.SetDefault("SLA_DAYS", 30)
	v.SetDefault("MAIL_BASE_URL", "")
	v.SetDefault("MAIL_FROM", "noreply@portal.local")
	v.SetDefault("MAIL_TEST_MODE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "portal-events")
	v.SetDefault("KAFKA_GROUP_ID", "portal-events-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPEchoEnabled && cfg.Env == "production" {
		return nil, errors.New("config: OTP_ECHO_ENABLED must not be true when APP_ENV=production")
	}
	if cfg.MailTestMode && cfg.Env == "production" {
		return nil, errors.New("config: MAIL_TEST_MODE must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.OTPMaxAttempts < 1 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.SLADays < 1 {
		return nil, errors.New("config: SLA_DAYS must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// OTPLifetime parses OTPTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// OTPRequestCooldown parses OTPCooldown as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) OTPRequestCooldown() time.Duration {
	d, err := time.ParseDuration(c.OTPCooldown)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// SessionTTL is the verified-session lifetime: OTP lifetime plus the grace window.
func (c *Config) SessionTTL() time.Duration {
	grace, err := time.ParseDuration(c.SessionGrace)
	if err != nil || grace < 0 {
		grace = 5 * time.Minute
	}
	return c.OTPLifetime() + grace
}

// EventsKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event emission is enabled (non-empty list) and to create the producer.
func (c *Config) EventsKafkaBrokersList() []string {
	if c == nil || c.EventsKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.EventsKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
