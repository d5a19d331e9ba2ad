// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// ProjectID is the hosted-backend project id; required.
	ProjectID string `mapstructure:"PROJECT_ID"`
	// WebAPIKey is the public API key for the identity REST sign-up fallback.
	WebAPIKey string `mapstructure:"WEB_API_KEY"`

	// ServiceAccountB64 is a base64-encoded service-account JSON blob (first
	// credential source).
	ServiceAccountB64 string `mapstructure:"SERVICE_ACCOUNT_B64"`
	// ServiceAccountJSON is a raw service-account JSON blob (second source).
	ServiceAccountJSON string `mapstructure:"SERVICE_ACCOUNT_JSON"`
	// ServiceAccountFile is a service-account JSON file path (third source).
	ServiceAccountFile string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`

	// TokenURL is the OAuth2 token endpoint for the JWT-bearer exchange.
	TokenURL string `mapstructure:"TOKEN_URL"`
	// IdentitySignupURL is the identity-service REST sign-up endpoint.
	IdentitySignupURL string `mapstructure:"IDENTITY_SIGNUP_URL"`
	// FirestoreBaseURL is the document-store REST API base.
	FirestoreBaseURL string `mapstructure:"FIRESTORE_BASE_URL"`
	// StudentsCollection is the profile collection name (default students).
	StudentsCollection string `mapstructure:"STUDENTS_COLLECTION"`

	// DefaultPassword is the fixed initial password for created identities;
	// required to run the pipeline.
	DefaultPassword string `mapstructure:"DEFAULT_PASSWORD"`
	// DefaultCountryCode is prefixed to 10-digit national phone numbers
	// (default 91).
	DefaultCountryCode string `mapstructure:"DEFAULT_COUNTRY_CODE"`
	// HTTPTimeout is the outbound HTTP timeout (e.g. "10s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`

	// AuditKafkaBrokers is a comma-separated broker list; empty disables the
	// Kafka audit emitter.
	AuditKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the audit event topic (default lms-audit).
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// OTLPEndpoint enables trace export when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("PROJECT_ID", "")
	v.SetDefault("WEB_API_KEY", "")
	v.SetDefault("SERVICE_ACCOUNT_B64", "")
	v.SetDefault("SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "")
	v.SetDefault("TOKEN_URL", "https://oauth2.googleapis.com/token")
	v.SetDefault("IDENTITY_SIGNUP_URL", "https://identitytoolkit.googleapis.com/v1/accounts:signUp")
	v.SetDefault("FIRESTORE_BASE_URL", "https://firestore.googleapis.com/v1")
	v.SetDefault("STUDENTS_COLLECTION", "students")
	v.SetDefault("DEFAULT_PASSWORD", "")
	v.SetDefault("DEFAULT_COUNTRY_CODE", "91")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "lms-audit")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ProjectID == "" {
		return nil, errors.New("config: PROJECT_ID must be set")
	}
	if cfg.StudentsCollection == "" {
		return nil, errors.New("config: STUDENTS_COLLECTION must not be empty")
	}

	return &cfg, nil
}

// Timeout parses HTTPTimeout as a time.Duration. Returns 10s if unset or
// invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// An empty list disables the Kafka audit emitter.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
