package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/staywatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/staywatch/internal/pipeline"
)

type statusResponse struct {
	Running  bool             `json:"running"`
	NextRun  *time.Time       `json:"next_run,omitempty"`
	Searches []string         `json:"searches"`
	Last     *pipeline.Report `json:"last_run,omitempty"`
	LastErr  string           `json:"last_error,omitempty"`
}

// Status exposes the last run report and the schedule.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			Running:  d.Runner.Running(),
			Searches: d.Searches,
		}
		if next := d.Runner.NextRun(); !next.IsZero() {
			resp.NextRun = &next
		}
		last, err := d.Runner.Last()
		resp.Last = last
		if err != nil {
			resp.LastErr = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
