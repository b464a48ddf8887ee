package auth

import "github.com/jrsteele09/go-priority-dashboard/sessions"

// fallbackProviderUsername names a bearer principal whose profile could not be fetched.
const fallbackProviderUsername = "keycloak_user"

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	Email    string
	Method   sessions.AuthMethod
	// SessionToken is the local session token backing the principal. It is empty for bearer
	// principals, which have no server-side session.
	SessionToken string
	Credentials  sessions.Credentials
}

// HasManagementCredentials reports whether the principal carries what is needed to act on
// managed endpoints on the caller's behalf.
func (p *Principal) HasManagementCredentials() bool {
	if p == nil || p.Username == "" {
		return false
	}
	switch c := p.Credentials.(type) {
	case sessions.LocalCredentials:
		return c.Password != ""
	case sessions.ProviderCredentials:
		return true
	default:
		return false
	}
}
