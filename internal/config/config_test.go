package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8001", cfg.Server.Addr())
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30, cfg.Database.WaitAttempts)
	assert.Equal(t, 2*time.Second, cfg.Database.WaitInterval)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.BlacklistDB)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "auctions:revoke", cfg.Worker.RevokeQueue)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
database:
  name: auctions_test
  wait_attempts: 5
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "auctions_test", cfg.Database.Name)
	assert.Equal(t, 5, cfg.Database.WaitAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched values keep their defaults.
	assert.Equal(t, "db", cfg.Database.Host)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load("does/not/exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("DB_WAIT_ATTEMPTS", "3")
	t.Setenv("DB_WAIT_INTERVAL", "500ms")
	t.Setenv("RABBITMQ_ENABLED", "true")
	t.Setenv("REDIS_BLACKLIST_DB", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 3, cfg.Database.WaitAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.WaitInterval)
	assert.True(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, 4, cfg.Redis.BlacklistDB)
}

func TestDSNFromParts(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, Name: "auctions",
		User: "auctions", Password: "secret", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 dbname=auctions user=auctions password=secret sslmode=disable",
		c.DSN())
}

func TestDSNURLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@elsewhere:5432/other?sslmode=disable")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@elsewhere:5432/other?sslmode=disable", cfg.Database.DSN())
}

func TestInvalidPortRejected(t *testing.T) {
	t.Setenv("SERVER_PORT", "-1")

	_, err := Load("")
	assert.Error(t, err)
}
