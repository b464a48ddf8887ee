package server

import (
	"net/http"

	"github.com/jrsteele09/go-priority-dashboard/bulk"
	"github.com/rs/zerolog/log"
)

type bulkApplyRequest struct {
	Items []bulk.Item `json:"items"`
	// Wait runs the items within the request and answers with the final report.
	Wait bool `json:"wait"`
}

type bulkReport struct {
	Success bool `json:"success"`
	bulk.Progress
}

type bulkStartedResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// BulkApplyHandler runs a list of role changes one after another. Item failures are
// reported per item and never stop the run.
func (s *Server) BulkApplyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkApplyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := bulk.ValidateItems(req.Items); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid bulk items", Error: err.Error()})
			return
		}

		principal := principalFromContext(r.Context())
		if !principal.HasManagementCredentials() {
			writeJSONError(w, http.StatusUnauthorized, "No authentication data")
			return
		}

		if req.Wait {
			report := s.bulk.Apply(r.Context(), req.Items, principal)
			writeJSON(w, http.StatusOK, bulkReport{Success: report.Failed == 0, Progress: report})
			return
		}

		op := s.bulk.Start(r.Context(), req.Items, principal)
		log.Info().Str("operation_id", op.ID()).Str("username", principal.Username).Msg("Bulk operation queued")
		writeJSON(w, http.StatusAccepted, bulkStartedResponse{Success: true, ID: op.ID()})
	}
}

// BulkProgressHandler returns the progress of one of the caller's bulk operations.
func (s *Server) BulkProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, ok := s.callerOperation(r)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "Bulk operation not found")
			return
		}
		writeJSON(w, http.StatusOK, bulkReport{Success: true, Progress: progress})
	}
}

// BulkCancelHandler stops one of the caller's bulk operations before its next item.
func (s *Server) BulkCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, ok := s.callerOperation(r)
		if !ok || !s.bulk.Cancel(progress.ID) {
			writeJSONError(w, http.StatusNotFound, "Bulk operation not found")
			return
		}
		writeJSON(w, http.StatusOK, bulkStartedResponse{Success: true, ID: progress.ID})
	}
}

// callerOperation looks up the operation named in the path. Operations started by other
// users are reported as missing.
func (s *Server) callerOperation(r *http.Request) (bulk.Progress, bool) {
	progress, ok := s.bulk.Get(r.PathValue("id"))
	if !ok || progress.Username != principalFromContext(r.Context()).Username {
		return bulk.Progress{}, false
	}
	return progress, true
}
