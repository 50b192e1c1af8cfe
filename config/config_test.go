package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("auth:\n  signing_key: " + testKey + "\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.GetTokenExpiration())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Equal(t, "insurai", cfg.GetIssuer())
	assert.Nil(t, cfg.GetAudience())
	assert.Equal(t, 4, cfg.Notifications.Workers)
	assert.Equal(t, 10*time.Second, cfg.Notifications.DeliveryTimeout)
	assert.Equal(t, 30, cfg.Renewals.WindowDays)
	assert.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
	assert.False(t, cfg.Database.Debug)
}

func TestParseOverridesSections(t *testing.T) {
	data := []byte(`
server:
  addr: ":9000"
auth:
  signing_key: ` + testKey + `
  token_expiration_hours: 2
  audience: portal,admin
notifications:
  workers: 8
  delivery_timeout: 3s
  webhook:
    url: https://hooks.example.com/insurai
    headers:
      X-Token: abc
  redis:
    addr: localhost:6379
    db: 2
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.GetTokenExpiration())
	assert.Equal(t, []string{"portal", "admin"}, cfg.GetAudience())
	assert.Equal(t, 8, cfg.Notifications.Workers)
	assert.Equal(t, 3*time.Second, cfg.Notifications.DeliveryTimeout)
	assert.Equal(t, "abc", cfg.Notifications.Webhook.Headers["X-Token"])
	assert.Equal(t, 2, cfg.Notifications.Redis.DB)
	assert.Equal(t, "insurai:notifications", cfg.Notifications.Redis.ListKey)
}

func TestValidateRequiresSigningKey(t *testing.T) {
	_, err := Parse([]byte("server:\n  addr: \":80\"\n"))
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryValidation, richErr.Category)

	fields := map[string]bool{}
	for _, fe := range richErr.ValidationErrors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["auth.signing_key"])
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.SigningKey = testKey
	cfg.Logging.Level = "verbose"
	cfg.Notifications.Webhook.URL = "not a url"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"INSURAI_AUTH_SIGNING_KEY":               testKey,
		"INSURAI_AUTH_TOKEN_EXPIRATION_HOURS":    "5",
		"INSURAI_NOTIFICATIONS_DELIVERY_TIMEOUT": "250ms",
		"INSURAI_SERVER_CORS_ORIGINS":            "https://a.example.com, https://b.example.com",
		"INSURAI_DATABASE_DSN":                   "file::memory:",
		"INSURAI_DATABASE_DEBUG":                 "true",
		"INSURAI_DATABASE_PING_TIMEOUT":          "2s",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Defaults()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, testKey, cfg.GetSigningKey())
	assert.Equal(t, 5, cfg.GetTokenExpiration())
	assert.Equal(t, 250*time.Millisecond, cfg.Notifications.DeliveryTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.True(t, cfg.Database.Debug)
	assert.Equal(t, 2*time.Second, cfg.Database.PingTimeout)
}

func TestApplyEnvRejectsNonNumeric(t *testing.T) {
	cfg := Defaults()
	err := cfg.applyEnv(func(key string) (string, bool) {
		if key == "INSURAI_NOTIFICATIONS_WORKERS" {
			return "many", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSURAI_NOTIFICATIONS_WORKERS")
}

func TestLoadReadsFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insurai.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  signing_key: "+testKey+"\nrenewals:\n  window_days: 14\n"), 0o600))
	t.Setenv("INSURAI_LOGGING_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Renewals.WindowDays)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
