package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// BonusTier is one rung of the loyalty bonus ladder. Threshold is either a
// historical spend amount or an order count, depending on ThresholdType.
type BonusTier struct {
	Threshold     decimal.Decimal `json:"threshold"`
	ThresholdType string          `json:"thresholdType"`
	Discount      decimal.Decimal `json:"discount"`
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTClockSkew       time.Duration
	CORSAllowedOrigins []string

	SplitPayBaseURL       string
	SplitPayAPIKey        string
	SplitPayWebhookSecret string
	SplitPayTimeout       time.Duration
	PaymentTTL            time.Duration
	RedirectSuccessURL    string
	RedirectFailURL       string

	DiscountStrategy    string
	BonusProgramEnabled bool
	BonusTiers          []BonusTier

	WebhookReplayTTL    time.Duration
	WebhookMaxBodyBytes int64
	IdempotencyTTL      time.Duration
	RateLimit           string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		JWTClockSkew:       parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SplitPayBaseURL:       valueOrDefault(k.String("SPLITPAY_BASE_URL"), "https://api.sandbox.splitpay.io"),
		SplitPayAPIKey:        k.String("SPLITPAY_API_KEY"),
		SplitPayWebhookSecret: k.String("SPLITPAY_WEBHOOK_SECRET"),
		SplitPayTimeout:       parseDuration(k.String("SPLITPAY_TIMEOUT"), "10s"),
		PaymentTTL:            parseDuration(k.String("PAYMENT_TTL"), "15m"),
		RedirectSuccessURL:    strings.TrimSpace(k.String("REDIRECT_SUCCESS_URL")),
		RedirectFailURL:       strings.TrimSpace(k.String("REDIRECT_FAIL_URL")),

		DiscountStrategy:    valueOrDefault(k.String("DISCOUNT_STRATEGY"), "proportional"),
		BonusProgramEnabled: parseBool(k.String("BONUS_PROGRAM_ENABLED")),

		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		WebhookMaxBodyBytes: parseInt64(k.String("WEBHOOK_MAX_BODY_BYTES"), 64*1024),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:           valueOrDefault(k.String("RATE_LIMIT"), "60-M"),
	}

	tiers, err := parseBonusTiers(k.String("BONUS_TIERS"))
	if err != nil {
		return nil, fmt.Errorf("parse BONUS_TIERS: %w", err)
	}
	cfg.BonusTiers = tiers

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SplitPayAPIKey == "" {
		return nil, errors.New("SPLITPAY_API_KEY is required")
	}
	if cfg.SplitPayWebhookSecret == "" {
		return nil, errors.New("SPLITPAY_WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// parseBonusTiers decodes the BONUS_TIERS JSON array. An empty value means
// the bonus program has no tiers configured.
func parseBonusTiers(raw string) ([]BonusTier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var tiers []BonusTier
	if err := json.Unmarshal([]byte(trimmed), &tiers); err != nil {
		return nil, err
	}
	for i := range tiers {
		switch strings.ToLower(strings.TrimSpace(tiers[i].ThresholdType)) {
		case "orders":
			tiers[i].ThresholdType = "orders"
		default:
			tiers[i].ThresholdType = "spend"
		}
	}
	return tiers, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
