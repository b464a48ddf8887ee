package sessions

import "time"

// AuthMethod identifies how a session was established. The values are part of the REST
// contract with the frontend.
type AuthMethod string

const (
	AuthMethodLocal            AuthMethod = "local"
	AuthMethodIdentityProvider AuthMethod = "keycloak"
)

// Credentials is the secret material held for a session. Exactly one variant exists per
// auth method: LocalCredentials or ProviderCredentials.
type Credentials interface {
	Method() AuthMethod
}

// LocalCredentials replays the login password as Basic auth against managed endpoints.
type LocalCredentials struct {
	Password string
}

func (LocalCredentials) Method() AuthMethod { return AuthMethodLocal }

// ProviderCredentials is the identity-provider token pair of an SSO session.
type ProviderCredentials struct {
	AccessToken  string
	RefreshToken string        // Optional, absent for the implicit-style token callback
	ExpiresIn    time.Duration // Lifetime reported by the provider, zero when unknown
	ExpiresAt    time.Time     // Absolute expiry, zero when ExpiresIn is unknown
}

func (ProviderCredentials) Method() AuthMethod { return AuthMethodIdentityProvider }

// Session is a copy of what the store holds for a token.
type Session struct {
	Username    string
	Credentials Credentials
	CreatedAt   time.Time
}

func (s Session) Method() AuthMethod {
	if s.Credentials == nil {
		return ""
	}
	return s.Credentials.Method()
}
