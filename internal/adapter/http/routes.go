package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the delegation API under /api/v1.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/delegations", h.Delegate)
		r.Get("/history", h.RecentHistory)
		r.Get("/history/{signature}", h.SignatureHistory)
		r.Get("/seeds/{signature}", h.SeedRecord)
		r.Get("/executors", h.Executors)
	})
}

// Health reports liveness plus per-executor breaker states.
func Health(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		breakers := map[string]string{}
		for et, state := range h.Invoker.BreakerStates() {
			breakers[et] = string(state)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"breakers": breakers,
		})
	}
}
