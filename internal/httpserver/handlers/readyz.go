package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/staywatch/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Running bool `json:"running"`
}

// Readyz answers 503 until one run has completed and persisted.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := d.Runner.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Running: d.Runner.Running()})
	}
}
