package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-priority-dashboard/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := config.New("")
	require.NoError(t, err)

	require.Equal(t, ":3001", c.GetPort())
	require.Equal(t, 12*time.Hour, c.GetSessionTokenExpiry())
	require.Equal(t, "./settings.yml", c.GetSettingsPath())
	require.Equal(t, "./public", c.GetPublicDir())
	require.False(t, c.IsIdentityProviderEnabled())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("*"))
}

func TestNew_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_EXPIRES_IN", "30m")
	t.Setenv("KEYCLOAK_ENABLED", "true")
	t.Setenv("KEYCLOAK_REALM", "ops")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")

	c, err := config.New("")
	require.NoError(t, err)

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 30*time.Minute, c.GetSessionTokenExpiry())
	require.True(t, c.IsIdentityProviderEnabled())
	require.Equal(t, "ops", c.GetIdentityProviderRealm())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("http://b.example"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("*"))
}

func TestNew_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settings_path: /etc/dashboard/settings.yml\nmanage_user: admin\n"), 0o600))

	c, err := config.New(path)
	require.NoError(t, err)
	require.Equal(t, "/etc/dashboard/settings.yml", c.GetSettingsPath())
	require.Equal(t, "admin", c.GetManageUser())
}

func TestValidate(t *testing.T) {
	t.Run("provider disabled", func(t *testing.T) {
		c, err := config.New("")
		require.NoError(t, err)
		require.NoError(t, config.Validate(c))
	})

	t.Run("provider enabled without settings", func(t *testing.T) {
		t.Setenv("KEYCLOAK_ENABLED", "true")
		c, err := config.New("")
		require.NoError(t, err)

		err = config.Validate(c)
		require.Error(t, err)
		require.Contains(t, err.Error(), "BaseURL")
	})

	t.Run("provider enabled and complete", func(t *testing.T) {
		t.Setenv("KEYCLOAK_ENABLED", "true")
		t.Setenv("KEYCLOAK_BASE_URL", "https://sso.example.com")
		t.Setenv("KEYCLOAK_REALM", "ops")
		t.Setenv("KEYCLOAK_CLIENT_ID", "dashboard")
		c, err := config.New("")
		require.NoError(t, err)
		require.NoError(t, config.Validate(c))
	})
}
