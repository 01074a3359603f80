package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes builds the HTTP surface: liveness plus live queue statistics.
func (a *application) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", a.handleHealth)
	r.Get("/stats", a.handleStats)

	return r
}

// handleHealth reports liveness, including database reachability.
func (a *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns current queue statistics.
func (a *application) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.queueStore.GetStatistics(r.Context())
	if err != nil {
		a.logger.Error("failed to read queue statistics", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read queue statistics",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
