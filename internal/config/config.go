// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// minSecretLength mirrors the check in auth.NewTokenService.
const minSecretLength = 16

type Config struct {
	Port        int
	AppEnv      string
	DatabaseURL string

	// FrontendHost prefixes the links sent by email.
	FrontendHost string

	SessionSecret string
	SessionTTL    time.Duration
	MailSecret    string
	ResetSecret   string
	BcryptCost    int

	MailFrom        string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	MailWorkers     int
	MailQueueSize   int
	MailSendTimeout time.Duration

	// AMQPURL switches outbound mail to the RabbitMQ relay when set.
	AMQPURL            string
	MailConsumerInline bool

	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads the environment. It fails on values that do not parse; use
// Validate for semantic checks.
func Load() (*Config, error) {
	// .env is a development convenience; production reads the real
	// environment only.
	if !isProduction(getEnv("APP_ENV", "development")) {
		_ = godotenv.Load() // a missing .env is fine
	}

	l := &loader{}
	cfg := &Config{
		Port:        l.int("PORT", 8080),
		AppEnv:      getEnv("APP_ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", "file:data/shortify.db"),

		FrontendHost: getEnv("FRONTEND_HOST", "http://localhost:3000"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    l.duration("SESSION_TTL", time.Hour),
		MailSecret:    getEnv("MAIL_SECRET", ""),
		ResetSecret:   getEnv("AMNESIA_SECRET", ""),
		BcryptCost:    l.int("BCRYPT_COST", 12),

		MailFrom:        getEnv("MAIL_FROM", "Activation <activation@shortify.com>"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        l.int("SMTP_PORT", 587),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		MailWorkers:     l.int("MAIL_WORKERS", 2),
		MailQueueSize:   l.int("MAIL_QUEUE_SIZE", 100),
		MailSendTimeout: l.duration("MAIL_SEND_TIMEOUT", 15*time.Second),

		AMQPURL:            getEnv("AMQP_URL", ""),
		MailConsumerInline: l.bool("MAIL_CONSUMER_INLINE", false),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting that would stop the server from working.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.FrontendHost == "" {
		errs = append(errs, errors.New("FRONTEND_HOST is required"))
	}

	secrets := map[string]string{
		"SESSION_SECRET": c.SessionSecret,
		"MAIL_SECRET":    c.MailSecret,
		"AMNESIA_SECRET": c.ResetSecret,
	}
	for _, key := range []string{"SESSION_SECRET", "MAIL_SECRET", "AMNESIA_SECRET"} {
		if len(secrets[key]) < minSecretLength {
			errs = append(errs, fmt.Errorf("%s must be at least %d characters", key, minSecretLength))
		}
	}
	if c.SessionSecret != "" && (c.SessionSecret == c.MailSecret || c.SessionSecret == c.ResetSecret) ||
		c.MailSecret != "" && c.MailSecret == c.ResetSecret {
		errs = append(errs, errors.New("SESSION_SECRET, MAIL_SECRET and AMNESIA_SECRET must all differ"))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.MailWorkers <= 0 {
		errs = append(errs, errors.New("MAIL_WORKERS must be positive"))
	}
	if c.MailQueueSize <= 0 {
		errs = append(errs, errors.New("MAIL_QUEUE_SIZE must be positive"))
	}
	if c.MailConsumerInline && c.AMQPURL == "" {
		errs = append(errs, errors.New("MAIL_CONSUMER_INLINE requires AMQP_URL"))
	}
	if c.IsProduction() && c.SMTPHost == "" && (c.AMQPURL == "" || c.MailConsumerInline) {
		errs = append(errs, errors.New("SMTP_HOST is required in production when this process delivers mail"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return isProduction(c.AppEnv)
}

func isProduction(env string) bool {
	return strings.EqualFold(env, "production")
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// loader collects parse errors so Load can report all of them at once.
type loader struct {
	errs []error
}

func (l *loader) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return v
}

func (l *loader) bool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return fallback
	}
	return v
}

// duration accepts Go duration strings ("90s", "1h") or a bare number of
// seconds.
func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
