package config

import "github.com/spf13/viper"

const (
	keycloakEnabledKey       = "keycloak_enabled"
	keycloakBaseURLKey       = "keycloak_base_url"
	keycloakRealmKey         = "keycloak_realm"
	keycloakClientIDKey      = "keycloak_client_id"
	keycloakClientSecretKey  = "keycloak_client_secret"
	keycloakRedirectURIKey   = "keycloak_redirect_uri"
	keycloakPasswordLoginKey = "keycloak_password_login"
)

// IdentityProviderConfig describes the Keycloak realm used for SSO and bearer validation.
type IdentityProviderConfig interface {
	IsIdentityProviderEnabled() bool
	GetIdentityProviderBaseURL() string
	GetIdentityProviderRealm() string
	GetIdentityProviderClientID() string
	GetIdentityProviderClientSecret() string
	GetIdentityProviderRedirectURI() string
	// GetPasswordLoginEnabled lets /login fall back to the password grant when local
	// authentication rejects the credentials.
	GetPasswordLoginEnabled() bool
}

type IdentityProvider struct {
	v *viper.Viper
}

var _ IdentityProviderConfig = IdentityProvider{}

func (i IdentityProvider) IsIdentityProviderEnabled() bool {
	return i.v.GetBool(keycloakEnabledKey)
}

func (i IdentityProvider) GetIdentityProviderBaseURL() string {
	return i.v.GetString(keycloakBaseURLKey)
}

func (i IdentityProvider) GetIdentityProviderRealm() string {
	return i.v.GetString(keycloakRealmKey)
}

func (i IdentityProvider) GetIdentityProviderClientID() string {
	return i.v.GetString(keycloakClientIDKey)
}

func (i IdentityProvider) GetIdentityProviderClientSecret() string {
	return i.v.GetString(keycloakClientSecretKey)
}

func (i IdentityProvider) GetIdentityProviderRedirectURI() string {
	return i.v.GetString(keycloakRedirectURIKey)
}

func (i IdentityProvider) GetPasswordLoginEnabled() bool {
	return i.v.GetBool(keycloakPasswordLoginKey)
}
