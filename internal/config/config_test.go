package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"STOREFRONT_API_URL", "STOREFRONT_ACCESS_TOKEN", "JWT_SECRET", "HTTP_TIMEOUT",
		"HOLD_DEFAULT_TTL", "HOLD_DEBOUNCE", "MAX_TICKETS_PER_EVENT", "POINTS_TO_SOLES_RATIO",
		"MARKER_BACKEND", "KAFKA_BROKERS", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Hold.DefaultTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Hold.Debounce)
	assert.Equal(t, 4, cfg.Rules.MaxTicketsPerEvent)
	assert.True(t, decimal.NewFromInt(10).Equal(cfg.Rules.PointsToSolesRatio))
	assert.Equal(t, MarkerBackendFile, cfg.Marker.Backend)
	assert.NotEmpty(t, cfg.Marker.File)
	assert.False(t, cfg.Kafka.Enabled())
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIURL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STOREFRONT_API_URL", "https://api.example.com/")
	t.Setenv("STOREFRONT_ACCESS_TOKEN", "tok")
	t.Setenv("HOLD_DEFAULT_TTL", "15m")
	t.Setenv("HOLD_DEBOUNCE", "0s")
	t.Setenv("MAX_TICKETS_PER_EVENT", "6")
	t.Setenv("POINTS_TO_SOLES_RATIO", "12.5")
	t.Setenv("MARKER_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/markers")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "tok", cfg.API.AccessToken)
	assert.Equal(t, 15*time.Minute, cfg.Hold.DefaultTTL)
	assert.Zero(t, cfg.Hold.Debounce)
	assert.Equal(t, 6, cfg.Rules.MaxTicketsPerEvent)
	assert.True(t, decimal.RequireFromString("12.5").Equal(cfg.Rules.PointsToSolesRatio))
	assert.Equal(t, MarkerBackendPostgres, cfg.Marker.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("HOLD_DEFAULT_TTL", "ten minutes")
	t.Setenv("MAX_TICKETS_PER_EVENT", "four")
	t.Setenv("POINTS_TO_SOLES_RATIO", "x")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Hold.DefaultTTL)
	assert.Equal(t, 4, cfg.Rules.MaxTicketsPerEvent)
	assert.True(t, decimal.NewFromInt(10).Equal(cfg.Rules.PointsToSolesRatio))
}

func TestValidate_Backends(t *testing.T) {
	tests := []struct {
		name   string
		marker MarkerConfig
		want   error
	}{
		{"file", MarkerConfig{Backend: MarkerBackendFile}, nil},
		{"memory", MarkerConfig{Backend: MarkerBackendMemory}, nil},
		{"postgres without url", MarkerConfig{Backend: MarkerBackendPostgres}, ErrMissingDatabaseURL},
		{"dynamodb without table", MarkerConfig{Backend: MarkerBackendDynamoDB}, ErrMissingTable},
		{"dynamodb", MarkerConfig{Backend: MarkerBackendDynamoDB, Table: "t"}, nil},
		{"unknown", MarkerConfig{Backend: "redis"}, ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{API: APIConfig{BaseURL: "http://localhost"}, Marker: tt.marker}
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)

	logger.WithField("component", "hold").Debug("hello")

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "hold", entry["component"])
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	logger := NewLogger(LogConfig{Level: "chatty"}, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
