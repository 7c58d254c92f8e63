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
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("PORT", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", c.Port)
	assert.Equal(t, "gpt-4-turbo-preview", c.OpenAIModel)
	assert.Equal(t, "https://api.polza.ai/api/v1", c.PolzaBaseURL)
	assert.Equal(t, 3, c.ContactRateLimit)
	assert.Equal(t, time.Minute, c.ContactRateWindow)
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("AIMLAPI_KEY=from-file\nCONTACT_RATE_LIMIT=5\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("PORT", "9090")
	t.Cleanup(func() {
		_ = os.Unsetenv("AIMLAPI_KEY")
		_ = os.Unsetenv("CONTACT_RATE_LIMIT")
	})

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", c.AIMLAPIKey)
	assert.Equal(t, 5, c.ContactRateLimit)
	assert.Equal(t, "9090", c.Port)
}

func TestTokenSecretFallbacks(t *testing.T) {
	c := &Config{}
	assert.Equal(t, "default-secret", c.TokenSecret())

	c.YooKassaSecretKey = "yk"
	assert.Equal(t, "yk", c.TokenSecret())

	c.AuthSecret = "auth"
	assert.Equal(t, "auth", c.TokenSecret())
}

func TestDSN(t *testing.T) {
	c := &Config{}
	assert.Empty(t, c.DSN())

	c = &Config{PGHost: "db", PGPort: "5432", PostgresUser: "app", PostgresPassword: "p@ss", PostgresDB: "content"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/content?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://u@h/x"
	assert.Equal(t, "postgres://u@h/x", c.DSN())
}
