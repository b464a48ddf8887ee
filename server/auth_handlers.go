package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-priority-dashboard/idp"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/jrsteele09/go-priority-dashboard/internal/utils"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success              bool                `json:"success"`
	Token                string              `json:"token"`
	AuthMethod           sessions.AuthMethod `json:"authMethod"`
	KeycloakToken        string              `json:"keycloakToken,omitempty"`
	KeycloakRefreshToken string              `json:"keycloakRefreshToken,omitempty"`
}

type logoutResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	AuthMethod sessions.AuthMethod `json:"authMethod"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshTokenResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type logoutURLResponse struct {
	Success    bool                `json:"success"`
	LogoutURL  *string             `json:"logoutUrl"`
	AuthMethod sessions.AuthMethod `json:"authMethod"`
}

// LoginHandler authenticates against the local credential set. When password login through
// the identity provider is enabled, local failures are retried there.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		localErr := s.credentials.Authenticate(req.Username, req.Password)
		if localErr == nil {
			token, err := s.sessions.Create(req.Username, sessions.LocalCredentials{Password: req.Password})
			if err != nil {
				log.Err(err).Str("username", req.Username).Msg("Failed to create session")
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			log.Info().Str("username", req.Username).Msg("Successful local login")
			writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, AuthMethod: sessions.AuthMethodLocal})
			return
		}

		if !s.passwordLoginEnabled() || req.Username == "" || req.Password == "" {
			log.Info().Err(localErr).Str("username", req.Username).Msg("Local login rejected")
			writeJSONError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}

		tokens, err := s.provider.PasswordGrant(r.Context(), req.Username, req.Password)
		if err != nil {
			log.Info().Err(err).Str("username", req.Username).Msg("Identity provider login rejected")
			if errors.Is(err, apperrors.ErrInvalidCredentials) {
				writeJSONError(w, http.StatusUnauthorized, "Invalid username or password")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}

		token, err := s.sessions.Create(req.Username, providerCredentials(tokens))
		if err != nil {
			log.Err(err).Str("username", req.Username).Msg("Failed to create session")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		log.Info().Str("username", req.Username).Msg("Successful identity provider password login")
		writeJSON(w, http.StatusOK, loginResponse{
			Success:              true,
			Token:                token,
			AuthMethod:           sessions.AuthMethodIdentityProvider,
			KeycloakToken:        tokens.AccessToken,
			KeycloakRefreshToken: tokens.RefreshToken,
		})
	}
}

func (s *Server) passwordLoginEnabled() bool {
	return s.provider.Enabled() && s.config.GetPasswordLoginEnabled()
}

// LogoutHandler ends the caller's session. Identity-provider sessions are also ended
// remotely; a failure there is logged and does not fail the logout.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := principalFromContext(r.Context())

		if creds, ok := principal.Credentials.(sessions.ProviderCredentials); ok && creds.RefreshToken != "" {
			if err := s.provider.Logout(r.Context(), creds.RefreshToken); err != nil {
				log.Err(err).Str("username", principal.Username).Msg("Identity provider logout failed")
			} else {
				log.Info().Str("username", principal.Username).Msg("Identity provider logout succeeded")
			}
		}

		if principal.SessionToken != "" {
			s.sessions.Delete(principal.SessionToken)
		}

		writeJSON(w, http.StatusOK, logoutResponse{Success: true, Message: "Logout successful", AuthMethod: principal.Method})
	}
}

// RefreshTokenHandler trades an identity-provider refresh token for a new token pair and
// stores it in the caller's session when one is named by the Authorization header.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
			writeJSONError(w, http.StatusUnauthorized, "Failed to refresh token")
			return
		}

		tokens, err := s.provider.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			log.Err(err).Msg("Token refresh failed")
			writeJSONError(w, http.StatusUnauthorized, "Failed to refresh token")
			return
		}

		if sessionToken := r.Header.Get("Authorization"); sessionToken != "" {
			s.sessions.RefreshProviderToken(sessionToken, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn)
		}

		writeJSON(w, http.StatusOK, refreshTokenResponse{
			Success:      true,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresIn:    tokens.ExpiresIn,
		})
	}
}

// LogoutURLHandler returns where the frontend should send the browser to end the
// identity-provider session. Local sessions have no such URL.
func (s *Server) LogoutURLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := principalFromContext(r.Context())

		if principal.Method != sessions.AuthMethodIdentityProvider {
			writeJSON(w, http.StatusOK, logoutURLResponse{Success: true, AuthMethod: sessions.AuthMethodLocal})
			return
		}

		writeJSON(w, http.StatusOK, logoutURLResponse{
			Success:    true,
			LogoutURL:  utils.Ptr(s.provider.BuildLogoutURL(r.URL.Query().Get("redirect_uri"))),
			AuthMethod: sessions.AuthMethodIdentityProvider,
		})
	}
}

func providerCredentials(tokens idp.TokenSet) sessions.ProviderCredentials {
	return sessions.ProviderCredentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    time.Duration(tokens.ExpiresIn) * time.Second,
	}
}
