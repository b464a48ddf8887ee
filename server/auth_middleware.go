package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-priority-dashboard/auth"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the authenticated *auth.Principal
	ContextKeyPrincipal ContextKey = "principal"
)

// RequireAuth is middleware that resolves the Authorization header to a principal.
// A Bearer header is checked against the identity provider, anything else is taken as a
// local session token. The wrapped handler only runs for authenticated requests.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal, err := s.gateway.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				log.Warn().
					Err(err).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Request rejected by authentication")
				writeJSONError(w, http.StatusUnauthorized, auth.FailureMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next(w, r.WithContext(ctx))
		}
	}
}

// principalFromContext returns the principal stored by RequireAuth.
func principalFromContext(ctx context.Context) *auth.Principal {
	principal, _ := ctx.Value(ContextKeyPrincipal).(*auth.Principal)
	return principal
}
