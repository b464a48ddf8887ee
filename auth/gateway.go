package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-priority-dashboard/idp"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

const bearerPrefix = "Bearer "

// ErrProviderTokenInactive is returned when introspection rejects a bearer token.
var ErrProviderTokenInactive = fmt.Errorf("%w: identity provider token is not active", apperrors.ErrInvalidToken)

// SessionStore is the part of the session store the gateway reads.
type SessionStore interface {
	Verify(token string) error
	Get(token string) (sessions.Session, bool)
}

// TokenValidator checks bearer tokens with the identity provider.
type TokenValidator interface {
	Introspect(ctx context.Context, token string) bool
	UserInfo(ctx context.Context, accessToken string) (idp.UserInfo, error)
}

// Gateway resolves the Authorization header of an inbound request into a Principal.
type Gateway struct {
	sessions  SessionStore
	validator TokenValidator
}

func NewGateway(sessionStore SessionStore, validator TokenValidator) *Gateway {
	return &Gateway{sessions: sessionStore, validator: validator}
}

// Authenticate dispatches on the header: a Bearer value is an identity provider access
// token, anything else is a local session token.
func (g *Gateway) Authenticate(ctx context.Context, authorizationHeader string) (*Principal, error) {
	if authorizationHeader == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	if strings.HasPrefix(authorizationHeader, bearerPrefix) {
		return g.authenticateBearer(ctx, strings.TrimPrefix(authorizationHeader, bearerPrefix))
	}
	return g.authenticateSession(authorizationHeader)
}

func (g *Gateway) authenticateBearer(ctx context.Context, accessToken string) (*Principal, error) {
	if !g.validator.Introspect(ctx, accessToken) {
		log.Warn().Msg("Identity provider token validation failed")
		return nil, ErrProviderTokenInactive
	}

	principal := &Principal{
		Method:      sessions.AuthMethodIdentityProvider,
		Credentials: sessions.ProviderCredentials{AccessToken: accessToken},
	}

	info, err := g.validator.UserInfo(ctx, accessToken)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get user info, using token only")
		principal.Username = fallbackProviderUsername
		return principal, nil
	}

	principal.Username = info.DisplayName()
	principal.Email = info.Email
	log.Debug().Str("username", principal.Username).Msg("Identity provider token valid")
	return principal, nil
}

func (g *Gateway) authenticateSession(token string) (*Principal, error) {
	if err := g.sessions.Verify(token); err != nil {
		log.Warn().Err(err).Msg("Local token validation failed")
		return nil, err
	}

	sess, ok := g.sessions.Get(token)
	if !ok {
		log.Warn().Msg("Session not found for local token")
		return nil, apperrors.ErrSessionNotFound
	}

	log.Debug().Str("username", sess.Username).Str("auth_method", string(sess.Method())).Msg("Local token valid")
	return &Principal{
		Username:     sess.Username,
		Method:       sess.Method(),
		SessionToken: token,
		Credentials:  sess.Credentials,
	}, nil
}

// FailureMessage is the client-facing text for an Authenticate error.
func FailureMessage(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrUnauthenticated):
		return "Authorization required"
	case apperrors.Is(err, apperrors.ErrSessionNotFound):
		return "Session not found"
	case apperrors.Is(err, ErrProviderTokenInactive):
		return "Invalid or expired Keycloak token"
	default:
		return "Invalid or expired token"
	}
}
