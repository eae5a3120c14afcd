// Package config loads client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Marker backends.
const (
	MarkerBackendFile     = "file"
	MarkerBackendMemory   = "memory"
	MarkerBackendPostgres = "postgres"
	MarkerBackendDynamoDB = "dynamodb"
)

var (
	ErrMissingAPIURL      = errors.New("STOREFRONT_API_URL is required")
	ErrUnknownBackend     = errors.New("unknown MARKER_BACKEND")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres marker backend")
	ErrMissingTable       = errors.New("MARKER_TABLE is required for the dynamodb marker backend")
)

type Config struct {
	API    APIConfig
	Hold   HoldConfig
	Rules  RulesConfig
	Marker MarkerConfig
	Kafka  KafkaConfig
	Log    LogConfig
}

type APIConfig struct {
	BaseURL     string
	AccessToken string
	// JWTSecret enables signature verification of AccessToken.
	JWTSecret string
	Timeout   time.Duration
}

type HoldConfig struct {
	DefaultTTL time.Duration
	Debounce   time.Duration
}

// RulesConfig holds the fallbacks used when GET /settings fails.
type RulesConfig struct {
	MaxTicketsPerEvent int
	PointsToSolesRatio decimal.Decimal
}

type MarkerConfig struct {
	Backend     string
	File        string
	DatabaseURL string
	Table       string
	AWSRegion   string
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// Enabled reports whether lifecycle events should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env.local and .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:     strings.TrimRight(getEnv("STOREFRONT_API_URL", ""), "/"),
			AccessToken: getEnv("STOREFRONT_ACCESS_TOKEN", ""),
			JWTSecret:   getEnv("JWT_SECRET", ""),
			Timeout:     getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		Hold: HoldConfig{
			DefaultTTL: getEnvAsDuration("HOLD_DEFAULT_TTL", 10*time.Minute),
			Debounce:   getEnvAsDuration("HOLD_DEBOUNCE", 100*time.Millisecond),
		},
		Rules: RulesConfig{
			MaxTicketsPerEvent: getEnvAsInt("MAX_TICKETS_PER_EVENT", 4),
			PointsToSolesRatio: getEnvAsDecimal("POINTS_TO_SOLES_RATIO", decimal.NewFromInt(10)),
		},
		Marker: MarkerConfig{
			Backend:     strings.ToLower(getEnv("MARKER_BACKEND", MarkerBackendFile)),
			File:        getEnv("MARKER_FILE", defaultMarkerFile()),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			Table:       getEnv("MARKER_TABLE", "hold-markers"),
			AWSRegion:   getEnv("AWS_REGION", ""),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:         getEnv("KAFKA_TOPIC", "cart-lifecycle"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "hold-audit"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
	return cfg, nil
}

// Validate checks the settings a cart session needs.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIURL
	}
	switch c.Marker.Backend {
	case MarkerBackendFile, MarkerBackendMemory:
	case MarkerBackendPostgres:
		if c.Marker.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case MarkerBackendDynamoDB:
		if c.Marker.Table == "" {
			return ErrMissingTable
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Marker.Backend)
	}
	return nil
}

func defaultMarkerFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-markers.json"
	}
	return filepath.Join(dir, "ticket-storefront", "markers.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value, err := decimal.NewFromString(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
