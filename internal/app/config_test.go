package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONTACTLY_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 5, cfg.RateLimit.Requests)
	require.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	require.Equal(t, 60*time.Minute, cfg.Auth.AccessTokenTTL)
	require.False(t, cfg.Redis.Enabled)
	require.False(t, cfg.Email.Enabled)
	require.False(t, cfg.Avatar.Enabled)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 9090
auth:
  jwt_secret: file-secret
rate_limit:
  requests: 10
  window: 30s
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("CONTACTLY_SERVER_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9191, cfg.Server.Port)
	require.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	require.Equal(t, 10, cfg.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}
