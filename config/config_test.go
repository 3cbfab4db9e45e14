package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsystem/coachpay/config"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "coachpay.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Stdout)
	assert.False(t, cfg.Logging.File.Enabled)
	assert.True(t, cfg.IsDevelopment())
	assert.NotEmpty(t, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A YAML file setting port, db path and timezone
	//        An env var overriding the db path
	// WHEN: Loading
	// THEN: File values win over defaults, env wins over the file
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  environment: production
database:
  path: /var/lib/coachpay/studio.db
payroll:
  timezone: Asia/Tokyo
logging:
  format: json
`), 0o600))
	t.Setenv("COACHPAY_DATABASE_PATH", ":memory:")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("COACHPAY_PAYROLL_TIMEZONE", "Mars/Olympus")
	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
