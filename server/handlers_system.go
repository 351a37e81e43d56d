package server

import (
	"net/http"
)

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
			"env":    s.env,
		})
	}
}
