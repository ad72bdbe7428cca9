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
	// MaxLoginAttempts is the failed-login threshold that locks an account.
	MaxLoginAttempts int `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	// LockoutMinutes is how long an account stays locked after the threshold is crossed.
	LockoutMinutes int `mapstructure:"LOCKOUT_MINUTES"`
	// MFACodeTTL is the one-time code lifetime (e.g. "10m").
	MFACodeTTL string `mapstructure:"MFA_CODE_TTL"`
	// MFAResendCooldownSeconds is the rolling window between OTP issuances per actor.
	MFAResendCooldownSeconds int `mapstructure:"MFA_RESEND_COOLDOWN_SECONDS"`
	// MFADedupSeconds absorbs duplicate issuance requests from the same client mount.
	MFADedupSeconds int `mapstructure:"MFA_DEDUP_SECONDS"`
	// RedisAddr, when set, backs the TTL cache (cooldowns, rate counters) with
	// Redis so they hold across instances. Empty means process-local memory.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA); used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "apflow-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "apflow-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SMSLocalAPIKey is the API key for the SMS Local OTP/notification route.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// AuditKafkaBrokers is a comma-separated broker list; when set, audit
	// events are mirrored to Kafka best-effort.
	AuditKafkaBrokers string `mapstructure:"AUDIT_KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for the audit stream.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// OTLPEndpoint is the OTLP collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// OperationsRoomActors is a comma-separated allowlist of actor IDs granted
	// invoice visibility regardless of role.
	OperationsRoomActors string `mapstructure:"OPERATIONS_ROOM_ACTORS"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
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
	v.SetDefault("MAX_LOGIN_ATTEMPTS", 3)
	v.SetDefault("LOCKOUT_MINUTES", 30)
	v.SetDefault("MFA_CODE_TTL", "10m")
	v.SetDefault("MFA_RESEND_COOLDOWN_SECONDS", 60)
	v.SetDefault("MFA_DEDUP_SECONDS", 5)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_ISSUER", "apflow-auth")
	v.SetDefault("JWT_AUDIENCE", "apflow-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("AUDIT_KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "apflow-audit")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("OPERATIONS_ROOM_ACTORS", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.MaxLoginAttempts < 1 {
		return nil, errors.New("config: MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if cfg.LockoutMinutes < 1 {
		return nil, errors.New("config: LOCKOUT_MINUTES must be at least 1")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// CodeTTL parses MFACodeTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	d, err := time.ParseDuration(c.MFACodeTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ResendCooldown returns the OTP issuance cooldown as a duration.
func (c *Config) ResendCooldown() time.Duration {
	if c.MFAResendCooldownSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.MFAResendCooldownSeconds) * time.Second
}

// DedupWindow returns the client-triggered duplicate-issuance window.
func (c *Config) DedupWindow() time.Duration {
	if c.MFADedupSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.MFADedupSeconds) * time.Second
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// AuditKafkaBrokersList returns broker addresses from the comma-separated config.
// A non-empty list enables the audit stream producer.
func (c *Config) AuditKafkaBrokersList() []string {
	return splitTrimmed(c.AuditKafkaBrokers)
}

// OperationsRoomList returns actor IDs from the comma-separated allowlist.
func (c *Config) OperationsRoomList() []string {
	return splitTrimmed(c.OperationsRoomActors)
}

func splitTrimmed(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
