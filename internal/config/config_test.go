package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  debug: true
  allowedOrigins:
    - https://example.com
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: tos
  password: secret
  name: analyses
openai:
  apiKey: sk-from-file
  model: gpt-4o
limits:
  dailyTokenBudget: 500000
  writePerMinute: 5
minio:
  enabled: true
  endpoint: minio.internal:9000
  bucketName: documents
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "sk-from-file", cfg.OpenAI.APIKey)
	assert.Equal(t, int64(500000), cfg.Limits.DailyTokenBudget)
	assert.Equal(t, 5, cfg.Limits.WritePerMinute)
	assert.True(t, cfg.Minio.Enabled)

	assert.Equal(t, "host=db.internal port=5432 user=tos password=secret dbname=analyses sslmode=disable", cfg.PostgresDSN())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "openai:\n  apiKey: sk-x\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "analyses.db", cfg.Database.Path)
	assert.False(t, cfg.Minio.Enabled)
}

func TestLoadEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	path := writeConfig(t, "openai:\n  apiKey: sk-from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{}
	cfg.Database.User = "tos"
	cfg.Database.Password = "secret"
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 3306
	cfg.Database.Name = "analyses"

	assert.Equal(t,
		"tos:secret@tcp(db.internal:3306)/analyses?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN())
}
