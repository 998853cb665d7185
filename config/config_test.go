package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "log:\n  level: info\n")

	cfg, err := Load("", path)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join(DataDir(), "kommo.db"), cfg.Database.Path)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TokenTTL)
	assert.Equal(t, 15*time.Second, cfg.CRM.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Google.Timeout)
	assert.Equal(t, "54", cfg.Sync.CountryCode)
	assert.Empty(t, cfg.Sync.Denylist)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  addr: ":8080"
  frontend_url: "https://app.example.com/"
sync:
  interval: 0s
google:
  client_id: from-file
`)
	t.Setenv("KOMMO_SESSION_TTL", "5m")
	t.Setenv("KOMMO_LOG_LEVEL", "debug")

	cfg, err := Load("", path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://app.example.com", cfg.Server.FrontendURL)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-file", cfg.Google.ClientID)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "{}\n")
	envFile := writeFile(t, dir, "test.env", "GOOGLE_CLIENT_SECRET=from-dotenv\n")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	require.NoError(t, os.Unsetenv("GOOGLE_CLIENT_SECRET"))

	cfg, err := Load(envFile, path)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Google.ClientSecret)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = DriverPostgres
	cfg.Session.TTL = time.Minute
	cfg.Session.TokenTTL = time.Hour
	assert.ErrorContains(t, cfg.Validate(), "database.dsn")

	cfg.Database.DSN = "postgres://localhost/kommo"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "unknown database.driver")

	cfg.Database.Driver = DriverSQLite
	cfg.Database.Path = "x.db"
	cfg.Sync.Interval = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "sync.interval")

	cfg.Sync.Interval = 0
	cfg.Session.TokenTTL = 0
	assert.ErrorContains(t, cfg.Validate(), "session.token_ttl")
}
