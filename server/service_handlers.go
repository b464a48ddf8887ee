package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-priority-dashboard/auth"
	apperrors "github.com/jrsteele09/go-priority-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

const noResponseData = "No response data"

type roleChangeRequest struct {
	Service string `json:"service" validate:"required"`
	URL     string `json:"url" validate:"required"`
}

type roleChangeResponse struct {
	Success bool `json:"success"`
	// FailedDemotions lists endpoints an only_one promotion could not demote.
	FailedDemotions []string `json:"failedDemotions,omitempty"`
}

// ServicesHandler returns the status URLs of every service.
func (s *Server) ServicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topo, err := s.topology.Load()
		if err != nil {
			log.Err(err).Msg("Failed to load services")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Error reading settings", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, topo.AllStatusURLs())
	}
}

// ServiceConfigsHandler returns the mode of every declaratively configured service.
func (s *Server) ServiceConfigsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topo, err := s.topology.Load()
		if err != nil {
			log.Err(err).Msg("Failed to load service configurations")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Error reading service configuration", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, topo.Configs())
	}
}

// StatusesHandler queries every endpoint for its current role.
func (s *Server) StatusesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses, err := s.priority.QueryAllStatuses(r.Context(), principalFromContext(r.Context()))
		if err != nil {
			log.Err(err).Msg("Failed to query statuses")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Error reading statuses", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, statuses)
	}
}

// PriorityHandler makes an endpoint primary.
func (s *Server) PriorityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, principal, ok := s.roleChangeRequest(w, r)
		if !ok {
			return
		}

		outcome, err := s.priority.SetPrimary(r.Context(), req.Service, req.URL, principal)
		if err != nil {
			writeRoleChangeError(w, err, "Error changing primary server")
			return
		}

		resp := roleChangeResponse{Success: true}
		for _, d := range outcome.FailedDemotions() {
			resp.FailedDemotions = append(resp.FailedDemotions, d.URL)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SetSecondaryHandler makes an endpoint of a many-mode service secondary.
func (s *Server) SetSecondaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, principal, ok := s.roleChangeRequest(w, r)
		if !ok {
			return
		}

		if _, err := s.priority.SetSecondary(r.Context(), req.Service, req.URL, principal); err != nil {
			writeRoleChangeError(w, err, "Error setting secondary status")
			return
		}
		writeJSON(w, http.StatusOK, roleChangeResponse{Success: true})
	}
}

// roleChangeRequest decodes the body and checks that the caller can act on managed
// endpoints. It writes the failure response itself and reports false in that case.
func (s *Server) roleChangeRequest(w http.ResponseWriter, r *http.Request) (roleChangeRequest, *auth.Principal, bool) {
	var req roleChangeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "service and url are required", Error: err.Error()})
		return req, nil, false
	}

	principal := principalFromContext(r.Context())
	log.Debug().
		Str("service", req.Service).
		Str("url", req.URL).
		Str("username", principal.Username).
		Str("auth_method", string(principal.Method)).
		Msg("Role change request")

	if !principal.HasManagementCredentials() {
		writeJSONError(w, http.StatusUnauthorized, "No authentication data")
		return req, nil, false
	}
	return req, principal, true
}

// writeRoleChangeError maps an orchestration failure onto the response. Endpoint
// permission failures are 403, everything else 500 with the upstream answer as details.
func writeRoleChangeError(w http.ResponseWriter, err error, message string) {
	var upstream *apperrors.UpstreamError
	isUpstream := errors.As(err, &upstream)

	logEvent := log.Err(err)
	if isUpstream {
		logEvent = logEvent.Str("url", upstream.URL).Int("status", upstream.StatusCode).Str("response", upstream.Body)
	}
	logEvent.Msg(message)

	if errors.Is(err, apperrors.ErrForbidden) {
		writeJSON(w, http.StatusForbidden, errorResponse{Message: "No management permissions", Error: err.Error()})
		return
	}

	var details any = noResponseData
	if isUpstream && upstream.Body != "" {
		details = upstreamDetails(upstream.Body)
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Message: message, Error: err.Error(), Details: details})
}

// upstreamDetails passes a JSON answer through as JSON and anything else as text.
func upstreamDetails(body string) any {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		return decoded
	}
	return body
}
