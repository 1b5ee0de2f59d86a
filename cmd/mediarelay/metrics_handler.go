package main

import (
	"net/http"

	"mediarelay/internal/metrics"
)

// handleMetrics serves the in-memory metrics registry as JSON.
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.GetRegistry().GetSnapshot())
	}
}
