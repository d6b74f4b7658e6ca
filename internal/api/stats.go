package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total            int            `json:"total"`
	ByStatus         map[string]int `json:"by_status"`
	ByObjective      map[string]int `json:"by_objective"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
	TotalGenerations int            `json:"total_generations"`
	ActiveRuns       int            `json:"active_runs"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetRunStats(r.Context())
	if err != nil {
		s.logger.Error("get run stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:            stats.Total,
		ByStatus:         stats.CountByStatus,
		ByObjective:      stats.CountByObjective,
		AvgDurationMS:    stats.AvgDurationMS,
		TotalGenerations: stats.TotalGenerations,
		ActiveRuns:       s.runner.Active(),
	})
}
