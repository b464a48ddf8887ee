package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-priority-dashboard/idp"
	"github.com/jrsteele09/go-priority-dashboard/internal/utils"
	"github.com/jrsteele09/go-priority-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

type ssoCallbackRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
}

type tokenCallbackRequest struct {
	AccessToken  string `json:"access_token"`
	CodeVerifier string `json:"code_verifier"`
}

type ssoResponse struct {
	Success              bool                `json:"success"`
	Token                string              `json:"token"`
	AuthMethod           sessions.AuthMethod `json:"authMethod"`
	KeycloakToken        string              `json:"keycloakToken"`
	KeycloakRefreshToken *string             `json:"keycloakRefreshToken"`
}

type keycloakStatusResponse struct {
	Success  bool       `json:"success"`
	Keycloak idp.Status `json:"keycloak"`
}

type keycloakConfigResponse struct {
	Success bool               `json:"success"`
	Config  idp.FrontendConfig `json:"config"`
}

// SSOCallbackHandler completes the authorization-code flow. Parameters are read from the
// JSON body first and then from the query string, so both the POST and GET forms work.
func (s *Server) SSOCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ssoCallbackRequest
		query := r.URL.Query()
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			// form_post response mode
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			query = r.Form
		} else if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Code = firstNonEmpty(req.Code, query.Get("code"))
		req.State = firstNonEmpty(req.State, query.Get("state"))
		req.CodeVerifier = firstNonEmpty(req.CodeVerifier, query.Get("code_verifier"))
		req.RedirectURI = firstNonEmpty(req.RedirectURI, query.Get("redirect_uri"), s.config.GetFrontendURL())

		log.Debug().
			Bool("code", req.Code != "").
			Str("state", req.State).
			Bool("code_verifier", req.CodeVerifier != "").
			Str("redirect_uri", req.RedirectURI).
			Msg("Received SSO callback")

		if req.Code == "" || req.State == "" {
			writeJSONError(w, http.StatusBadRequest, "Missing required parameters code or state")
			return
		}

		tokens, err := s.provider.ExchangeAuthorizationCode(r.Context(), req.Code, req.RedirectURI, req.CodeVerifier)
		if err != nil {
			log.Err(err).Msg("Authorization code exchange failed")
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}

		s.completeSSO(w, r, tokens)
	}
}

// SSOTokenCallbackHandler creates a session for an access token the frontend already holds.
// No refresh token is available in this flow.
func (s *Server) SSOTokenCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenCallbackRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.AccessToken == "" {
			writeJSONError(w, http.StatusBadRequest, "Missing access_token")
			return
		}

		s.completeSSO(w, r, idp.TokenSet{AccessToken: req.AccessToken})
	}
}

func (s *Server) completeSSO(w http.ResponseWriter, r *http.Request, tokens idp.TokenSet) {
	info, err := s.provider.UserInfo(r.Context(), tokens.AccessToken)
	if err != nil {
		log.Err(err).Msg("Failed to fetch user information after SSO")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	username := info.DisplayName()

	token, err := s.sessions.Create(username, providerCredentials(tokens))
	if err != nil {
		log.Err(err).Str("username", username).Msg("Failed to create session")
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("username", username).Msg("Successful identity provider authentication")

	var refreshToken *string
	if tokens.RefreshToken != "" {
		refreshToken = utils.Ptr(tokens.RefreshToken)
	}
	writeJSON(w, http.StatusOK, ssoResponse{
		Success:              true,
		Token:                token,
		AuthMethod:           sessions.AuthMethodIdentityProvider,
		KeycloakToken:        tokens.AccessToken,
		KeycloakRefreshToken: refreshToken,
	})
}

// KeycloakStatusHandler reports the identity-provider settings with the secret masked.
func (s *Server) KeycloakStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, keycloakStatusResponse{Success: true, Keycloak: s.provider.Status()})
	}
}

// KeycloakConfigHandler returns what the frontend needs to start the SSO flow.
func (s *Server) KeycloakConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, keycloakConfigResponse{Success: true, Config: s.provider.FrontendConfig()})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
