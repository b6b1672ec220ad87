package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate clears every variable the loaders read and runs from an empty directory,
// so neither the host environment nor a stray .env file leaks in.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		ConfigFileEnv, "ENVIRONMENT", "LOG_LEVEL", "NYSC_API_URL", "NYSC_STATE_PATH", "NYSC_ADMIN_EMAIL",
		"NYSC_ASK_TIMEOUT", "NYSC_AUTH_TIMEOUT", "NYSC_PROFILE_TIMEOUT", "NYSC_FEED_TIMEOUT",
		"NYSC_PORTAL_TIMEOUT", "NYSC_ADMIN_TIMEOUT", "NYSC_POLL_INTERVAL",
		"PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "TOKEN_TTL", "AUTH_RATE_LIMIT", "AUTH_RATE_BURST",
		"S3_BUCKET_NAME", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
		"DATABASE_URL", "ASK_LATENCY", "MAINTENANCE_MODE",
	} {
		if old, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { _ = os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { _ = os.Unsetenv(k) })
		}
	}
	t.Chdir(t.TempDir())
}

func TestClientDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, DefaultAdminEmail, cfg.AdminEmail)
	assert.Equal(t, 45*time.Second, cfg.AskTimeout)
	assert.Equal(t, 60*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 10*time.Second, cfg.ProfileTimeout)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.NotEmpty(t, cfg.StatePath)
}

func TestClientFileThenEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "nysc.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[client]
api_base_url = "https://api.example.ng"
admin_email = "chief@nysc.gov.ng"
poll_interval = "1m"

[client.timeouts]
ask = "30s"
feed = "5s"
`), 0o600))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("NYSC_ASK_TIMEOUT", "20s")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://api.example.ng", cfg.APIBaseURL)
	assert.Equal(t, "chief@nysc.gov.ng", cfg.AdminEmail)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.AskTimeout, "env wins over the file")
	assert.Equal(t, 5*time.Second, cfg.FeedTimeout)
}

func TestClientRejectsBadValues(t *testing.T) {
	isolate(t)

	t.Setenv("NYSC_API_URL", "ftp://x")
	_, err := LoadClientConfig()
	assert.Error(t, err)

	t.Setenv("NYSC_API_URL", "http://localhost:8000")
	t.Setenv("NYSC_ASK_TIMEOUT", "soon")
	_, err = LoadClientConfig()
	assert.Error(t, err)

	t.Setenv("NYSC_ASK_TIMEOUT", "0s")
	_, err = LoadClientConfig()
	assert.Error(t, err)
}

func TestEmptyAdminEmailDisablesSentinel(t *testing.T) {
	isolate(t)
	t.Setenv("NYSC_ADMIN_EMAIL", "")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.AdminEmail)
}

func TestMissingConfigFile(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "absent.toml"))

	_, err := LoadClientConfig()
	assert.Error(t, err)
}

func TestServerDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.False(t, cfg.StorageEnabled())
	assert.False(t, cfg.MaintenanceMode)
	assert.Zero(t, cfg.AskLatency)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestServerEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.ng, ,http://b.ng")
	t.Setenv("ASK_LATENCY", "250ms")
	t.Setenv("MAINTENANCE_MODE", "true")
	t.Setenv("S3_BUCKET_NAME", "b")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("S3_ACCESS_KEY_ID", "k")
	t.Setenv("S3_SECRET_ACCESS_KEY", "s")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"http://a.ng", "http://b.ng"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.AskLatency)
	assert.True(t, cfg.MaintenanceMode)
	assert.True(t, cfg.StorageEnabled())
}

func TestServerProductionRequirements(t *testing.T) {
	isolate(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadServerConfig()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = LoadServerConfig()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/nysc")
	_, err = LoadServerConfig()
	assert.NoError(t, err)

	t.Setenv("PORT", "80")
	_, err = LoadServerConfig()
	assert.Error(t, err)
}
