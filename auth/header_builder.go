package auth

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/jrsteele09/go-priority-dashboard/idp"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

// SessionRefresher is the part of the session store used to keep provider tokens fresh.
type SessionRefresher interface {
	IsNearExpiry(token string) bool
	RefreshProviderToken(token, accessToken, refreshToken string, expiresInSeconds int) bool
	Get(token string) (sessions.Session, bool)
}

// TokenRefresher exchanges a refresh token at the identity provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (idp.TokenSet, error)
}

// HeaderBuilder produces the Authorization header sent to managed endpoints for a principal.
type HeaderBuilder struct {
	sessions SessionRefresher
	provider TokenRefresher
}

func NewHeaderBuilder(sessionStore SessionRefresher, provider TokenRefresher) *HeaderBuilder {
	return &HeaderBuilder{sessions: sessionStore, provider: provider}
}

// AuthorizationHeader returns a Bearer header for provider principals and a Basic header
// for local ones. A provider token that is close to expiry is refreshed first; the session
// and principal are updated in place. A failed refresh is logged and the current token used.
// An empty string means the principal carries nothing to forward.
func (b *HeaderBuilder) AuthorizationHeader(ctx context.Context, principal *Principal) string {
	if principal == nil {
		return ""
	}

	switch creds := principal.Credentials.(type) {
	case sessions.ProviderCredentials:
		if creds.AccessToken == "" {
			return ""
		}
		if principal.SessionToken != "" && creds.RefreshToken != "" && b.sessions.IsNearExpiry(principal.SessionToken) {
			creds = b.refresh(ctx, principal, creds)
		}
		return "Bearer " + creds.AccessToken
	case sessions.LocalCredentials:
		if principal.Username == "" || creds.Password == "" {
			return ""
		}
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(principal.Username+":"+creds.Password))
	default:
		return ""
	}
}

func (b *HeaderBuilder) refresh(ctx context.Context, principal *Principal, creds sessions.ProviderCredentials) sessions.ProviderCredentials {
	tokens, err := b.provider.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		log.Err(err).Str("username", principal.Username).Msg("Identity provider token refresh error")
		return creds
	}

	if b.sessions.RefreshProviderToken(principal.SessionToken, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn) {
		if sess, ok := b.sessions.Get(principal.SessionToken); ok {
			if stored, ok := sess.Credentials.(sessions.ProviderCredentials); ok {
				principal.Credentials = stored
				return stored
			}
		}
	}

	// Session gone: use the new tokens for this call only. Expiry is owned by the store.
	creds.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		creds.RefreshToken = tokens.RefreshToken
	}
	creds.ExpiresIn = time.Duration(tokens.ExpiresIn) * time.Second
	creds.ExpiresAt = time.Time{}
	principal.Credentials = creds
	return creds
}
