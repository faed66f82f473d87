package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/solver"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/validate"
)

// handleJobs lists and submits solver runs on behalf of the session user.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	tok, _ := tokenFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		jobs, err := s.Solver.ListJobs(r.Context(), tok.Email)
		if err != nil {
			s.writeSolverError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tests": jobs})
	case http.MethodPost:
		var req solver.JobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := validate.JobType(req.Type); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
			return
		}
		job, err := s.Solver.SubmitJob(r.Context(), tok.Email, req)
		if err != nil {
			s.writeSolverError(w, err)
			return
		}
		s.Logger.Info("job submitted", "email", tok.Email, "type", req.Type, "job_id", job.ID)
		writeJSON(w, http.StatusOK, job)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// handleJobByID covers /api/jobs/{id} and /api/jobs/{id}/share.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	tok, _ := tokenFrom(r.Context())
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "share" {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		var req struct {
			SharedWith []string `json:"sharedWith"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		emails := make([]string, 0, len(req.SharedWith))
		for _, e := range req.SharedWith {
			norm, err := validate.Email(e)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			emails = append(emails, norm)
		}
		if err := s.Solver.ShareJob(r.Context(), tok.Email, id, emails); err != nil {
			s.writeSolverError(w, err)
			return
		}
		s.Logger.Info("job shared", "email", tok.Email, "job_id", id, "with", len(emails))
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := s.Solver.GetJob(r.Context(), tok.Email, id)
		if err != nil {
			s.writeSolverError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.Solver.DeleteJob(r.Context(), tok.Email, id); err != nil {
			s.writeSolverError(w, err)
			return
		}
		s.Logger.Info("job deleted", "email", tok.Email, "job_id", id)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// handleQueueStatus serves the cached hardware queue snapshot so browser
// polling never multiplies load on the solver API.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	status, fetchedAt, ok := s.Poller.Status()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue status unavailable"})
		return
	}
	w.Header().Set("x-fetched-at", fetchedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	writeJSON(w, http.StatusOK, status)
}

// writeSolverError relays upstream client errors verbatim and folds
// everything else into a 502 so callers can tell whose fault it was.
func (s *Server) writeSolverError(w http.ResponseWriter, err error) {
	var es *solver.ErrStatus
	if errors.As(err, &es) && es.Code >= 400 && es.Code < 500 {
		writeJSON(w, es.Code, map[string]string{"error": "solver rejected request"})
		return
	}
	s.Logger.Error("solver request failed", "err", err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "solver unavailable"})
}
