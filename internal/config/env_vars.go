package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	portKey           = "port"
	appNameKey        = "app_name"
	envKey            = "env"
	logLevelKey       = "log_level"
	frontendURLKey    = "frontend_url"
	jwtSecretKey      = "jwt_secret"
	jwtExpiresInKey   = "jwt_expires_in"
	manageUserKey     = "manage_user"
	managePasswordKey = "manage_password"
	localUsersPathKey = "local_users_path"
	settingsPathKey   = "settings_path"
	publicDirKey      = "public_dir"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portKey)
	if port == "" {
		port = "3001"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameKey)
}

func (e EnvVars) GetEnv() string {
	env := e.v.GetString(envKey)
	if env == "" {
		return "DEV"
	}
	return strings.ToUpper(env)
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelKey)
}

// GetFrontendURL is where the browser lands after an identity-provider logout and the
// default redirect URI of the authorization code flow.
func (e EnvVars) GetFrontendURL() string {
	return e.v.GetString(frontendURLKey)
}

type Session struct {
	v *viper.Viper
}

var _ SessionConfig = Session{}

func (s Session) GetJWTSecret() string {
	return s.v.GetString(jwtSecretKey)
}

func (s Session) GetSessionTokenExpiry() time.Duration {
	expiry := s.v.GetDuration(jwtExpiresInKey)
	if expiry <= 0 {
		return 12 * time.Hour
	}
	return expiry
}

type LocalAuth struct {
	v *viper.Viper
}

var _ LocalAuthConfig = LocalAuth{}

func (l LocalAuth) GetManageUser() string {
	return l.v.GetString(manageUserKey)
}

func (l LocalAuth) GetManagePassword() string {
	return l.v.GetString(managePasswordKey)
}

func (l LocalAuth) GetLocalUsersPath() string {
	return l.v.GetString(localUsersPathKey)
}

type Files struct {
	v *viper.Viper
}

var _ FilesConfig = Files{}

func (f Files) GetSettingsPath() string {
	return f.v.GetString(settingsPathKey)
}

func (f Files) GetPublicDir() string {
	return f.v.GetString(publicDirKey)
}
