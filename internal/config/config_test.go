package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseDSN, "clinic.db")
	assert.False(t, cfg.RestockApprovalRequired)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("RESTOCK_APPROVAL_REQUIRED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("TOKEN_TTL", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "postgres://postgres:pw@localhost:5432/clinic?sslmode=disable", cfg.DatabaseDSN)
	assert.True(t, cfg.RestockApprovalRequired)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
}

func TestValidate(t *testing.T) {
	base := Config{Env: "development", Secret: "dev_secret", HTTPPort: "8080", DatabaseDriver: "sqlite", TokenTTL: time.Hour}
	require.NoError(t, base.Validate())

	bad := base
	bad.HTTPPort = "http"
	assert.Error(t, bad.Validate())

	bad = base
	bad.DatabaseDriver = "mysql"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Env = "production"
	assert.ErrorContains(t, bad.Validate(), "SECRET")

	bad = base
	bad.KafkaBrokers = []string{"k:9092"}
	assert.ErrorContains(t, bad.Validate(), "KAFKA_TOPIC")
}
