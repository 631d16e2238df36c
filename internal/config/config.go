package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogFormat   string

	DBMaxConns         int
	DBMaxConnLifetime  time.Duration
	DBMaxConnIdleTime  time.Duration
	DBStatementTimeout time.Duration

	CarrierProvider string
	Mode            string
	APIKey          string
	APISecret       string
	BaseURL         string
	WebhookSecret   string
	CarrierRPS      float64
	ServicesTTL     time.Duration

	MethodID           string
	SearchLimit        int
	AddTrackingToEmail bool
	DimensionUnit      string

	SenderName       string
	SenderAddress    string
	SenderPostalCode string
	SenderCity       string
	CODIBAN          string
	CODBIC           string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(k.String("REDIS_URL")),
		LogLevel:    valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:   valueOrDefault(k.String("LOG_FORMAT"), "json"),

		DBMaxConns:         parseInt(k.String("DB_MAX_CONNS"), 5),
		DBMaxConnLifetime:  parseDuration(k.String("DB_MAX_CONN_LIFETIME"), "30m"),
		DBMaxConnIdleTime:  parseDuration(k.String("DB_MAX_CONN_IDLE_TIME"), "5m"),
		DBStatementTimeout: parseDuration(k.String("DB_STATEMENT_TIMEOUT"), "5s"),

		CarrierProvider: strings.ToLower(valueOrDefault(k.String("CARRIER_PROVIDER"), "pakettikauppa")),
		Mode:            strings.ToLower(valueOrDefault(k.String("PAKETTIKAUPPA_MODE"), "test")),
		APIKey:          strings.TrimSpace(k.String("PAKETTIKAUPPA_API_KEY")),
		APISecret:       strings.TrimSpace(k.String("PAKETTIKAUPPA_SECRET")),
		BaseURL:         strings.TrimSpace(k.String("PAKETTIKAUPPA_BASE_URL")),
		WebhookSecret:   k.String("PAKETTIKAUPPA_WEBHOOK_SECRET"),
		CarrierRPS:      parseFloat(k.String("CARRIER_RPS"), 5),
		ServicesTTL:     parseDuration(k.String("SERVICES_CACHE_TTL"), "24h"),

		MethodID:           valueOrDefault(k.String("METHOD_ID"), "pakettikauppa"),
		SearchLimit:        parseInt(k.String("PICKUP_POINTS_SEARCH_LIMIT"), 5),
		AddTrackingToEmail: parseBool(k.String("ADD_TRACKING_TO_EMAIL")),
		DimensionUnit:      valueOrDefault(k.String("DIMENSION_UNIT"), "m"),

		SenderName:       strings.TrimSpace(k.String("SENDER_NAME")),
		SenderAddress:    strings.TrimSpace(k.String("SENDER_ADDRESS")),
		SenderPostalCode: strings.TrimSpace(k.String("SENDER_POSTAL_CODE")),
		SenderCity:       strings.TrimSpace(k.String("SENDER_CITY")),
		CODIBAN:          strings.TrimSpace(k.String("COD_IBAN")),
		CODBIC:           strings.TrimSpace(k.String("COD_BIC")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	switch cfg.Mode {
	case "test", "production":
	default:
		return nil, fmt.Errorf("PAKETTIKAUPPA_MODE must be test or production, got %q", cfg.Mode)
	}
	if cfg.Mode == "production" && cfg.CarrierProvider != "mock" && (cfg.APIKey == "" || cfg.APISecret == "") {
		return nil, errors.New("PAKETTIKAUPPA_API_KEY and PAKETTIKAUPPA_SECRET are required in production mode")
	}
	if cfg.SearchLimit < 1 {
		cfg.SearchLimit = 5
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", cfg.DBMaxConns)
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

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
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
