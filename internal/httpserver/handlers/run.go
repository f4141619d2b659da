package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/staywatch/internal/httpserver/deps"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
)

type runResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// Run queues a pipeline run. A run already waiting answers 429.
func Run(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Runner.Trigger() {
			d.Logger.Debug("run already queued, trigger rejected")
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, runResponse{Message: "a run is already queued"})
			return
		}
		d.Logger.Info("run triggered over http", logger.String("remote_addr", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, runResponse{Queued: true, Message: "run queued"})
	}
}
