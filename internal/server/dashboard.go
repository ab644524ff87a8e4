package server

import (
	_ "embed"
	"html/template"
	"net/http"
	"time"

	"github.com/3leaps/queuectl/pkg/queue"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(
	template.New("dashboard").Funcs(template.FuncMap{
		"fmtTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format(time.RFC3339)
		},
	}).Parse(dashboardHTML))

type dashboardData struct {
	Stats      *queue.Stats
	Metrics    *queue.Metrics
	RecentJobs []queue.Job
	Dead       []queue.DeadJob
	Now        time.Time
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.internalError(w, err)
		return
	}
	metrics, err := s.queue.Metrics(ctx)
	if err != nil {
		s.internalError(w, err)
		return
	}
	recent, err := s.queue.List(ctx, "", 20)
	if err != nil {
		s.internalError(w, err)
		return
	}
	dead, err := s.queue.GetDLQ(ctx, 10)
	if err != nil {
		s.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := dashboardData{
		Stats:      stats,
		Metrics:    metrics,
		RecentJobs: recent,
		Dead:       dead,
		Now:        time.Now().UTC(),
	}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.internalError(w, err)
	}
}
