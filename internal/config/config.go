package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	LocalAuthConfig
	IdentityProviderConfig
	FilesConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetFrontendURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SessionConfig interface {
	GetJWTSecret() string
	GetSessionTokenExpiry() time.Duration
}

type LocalAuthConfig interface {
	GetManageUser() string
	GetManagePassword() string
	GetLocalUsersPath() string
}

type FilesConfig interface {
	GetSettingsPath() string
	// GetPublicDir is the built frontend served for non-API paths. Empty disables it.
	GetPublicDir() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	LocalAuth
	IdentityProvider
	Files
}

// New builds the configuration from defaults, the process environment and an optional
// YAML file. Environment variables always win over the file.
func New(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("[config New] failed to read %s: %w", configFile, err)
		}
	}

	return mainConfig{
		EnvVars:          EnvVars{v: v},
		Cors:             Cors{v: v},
		Session:          Session{v: v},
		LocalAuth:        LocalAuth{v: v},
		IdentityProvider: IdentityProvider{v: v},
		Files:            Files{v: v},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portKey, "3001")
	v.SetDefault(appNameKey, "Priority Dashboard")
	v.SetDefault(envKey, "DEV")
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(frontendURLKey, "http://localhost:3001")
	v.SetDefault(allowedOriginsKey, "*")
	v.SetDefault(jwtSecretKey, "supersecretkey")
	v.SetDefault(jwtExpiresInKey, "12h")
	v.SetDefault(localUsersPathKey, "./local-users.yml")
	v.SetDefault(keycloakEnabledKey, false)
	v.SetDefault(keycloakPasswordLoginKey, false)
	v.SetDefault(settingsPathKey, "./settings.yml")
	v.SetDefault(publicDirKey, "./public")
}
