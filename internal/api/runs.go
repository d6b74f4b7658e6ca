package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/forge/internal/model"
	"github.com/seantiz/forge/internal/runner"
	"github.com/seantiz/forge/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createRunRequest is the JSON body for POST /v1/runs.
type createRunRequest struct {
	Experiment model.Experiment `json:"experiment"`
	TimeoutS   *int             `json:"timeout_s"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type listGenerationsResponse struct {
	RunID       string                   `json:"run_id"`
	Generations []model.GenerationRecord `json:"generations"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	exp := req.Experiment
	exp.Normalize()
	if err := exp.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.registry.Resolve(exp.Objective); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TimeoutS != nil && *req.TimeoutS < 0 {
		s.writeError(w, http.StatusBadRequest, "timeout_s must be >= 0")
		return
	}

	run := &model.Run{
		ID:         model.NewID(),
		Status:     model.StatusPending,
		Experiment: exp,
		TimeoutS:   req.TimeoutS,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.runner.Submit(r.Context(), run); err != nil {
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}
	runsSubmittedTotal.WithLabelValues(exp.Objective).Inc()

	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// handleCancelRun stops an executing run. The run reaches the cancelled
// state asynchronously.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.runner.Cancel(id); err != nil {
		if !errors.Is(err, runner.ErrNotActive) {
			s.logger.Error("cancel run", "run_id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to cancel run")
			return
		}
		run, ok := s.lookupRun(w, r)
		if !ok {
			return
		}
		s.writeError(w, http.StatusConflict, "run is already "+run.Status)
		return
	}
	runsCancelledTotal.Inc()

	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	gens, err := s.store.ListGenerations(r.Context(), run.ID)
	if err != nil {
		s.logger.Error("list generations", "run_id", run.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	if gens == nil {
		gens = []model.GenerationRecord{}
	}

	s.writeJSON(w, http.StatusOK, listGenerationsResponse{
		RunID:       run.ID,
		Generations: gens,
	})
}

// lookupRun loads the run named by the id URL parameter, writing a 404 or
// 500 response when it cannot.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get run", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return nil, false
	}
	return run, true
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
