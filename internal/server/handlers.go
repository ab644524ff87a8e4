package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/3leaps/queuectl/pkg/queue"
)

// statsResponse is the /api/stats payload: raw state counts plus the
// derived metrics the dashboard renders.
type statsResponse struct {
	Pending        int64 `json:"pending"`
	Processing     int64 `json:"processing"`
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	Dead           int64 `json:"dead"`
	TotalCompleted int64 `json:"totalCompleted"`
	AvgExecutionMS int64 `json:"avgExecutionTime"`
	SuccessRate    int   `json:"successRate"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	metrics, err := s.queue.Metrics(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, statsResponse{
		Pending:        stats.Pending,
		Processing:     stats.Processing,
		Completed:      stats.Completed,
		Failed:         stats.Failed,
		Dead:           stats.Dead,
		TotalCompleted: metrics.TotalCompleted,
		AvgExecutionMS: metrics.AvgExecutionMS,
		SuccessRate:    metrics.SuccessRate,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	state := queue.State(r.URL.Query().Get("state"))

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	jobs, err := s.queue.List(r.Context(), state, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if jobs == nil {
		jobs = []queue.Job{}
	}

	s.writeJSON(w, jobs)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response failed", zap.Error(err))
	}
}

// internalError returns HTTP 500 with the error string as plain text.
func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("dashboard request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
