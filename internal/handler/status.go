package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/LJAM96/lmsilo-core/internal/circuitbreaker"
)

// StatusHandler serves the status snapshot of every registered circuit.
func StatusHandler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"circuits": registry.Statuses(),
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// CircuitStatusHandler serves a single circuit's status snapshot. The
// circuit name is taken from the {name} path segment.
func CircuitStatusHandler(registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cb, exists := registry.Lookup(r.PathValue("name"))
		if !exists {
			http.Error(w, "unknown circuit", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cb.Status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// ResetHandler forces a circuit back to closed. Administrative override.
func ResetHandler(logger *slog.Logger, registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		cb, exists := registry.Lookup(name)
		if !exists {
			http.Error(w, "unknown circuit", http.StatusNotFound)
			return
		}

		cb.Reset()
		logger.Info("Circuit reset via admin endpoint",
			slog.String("circuit", name),
			slog.String("client", extractClientIP(r)))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cb.Status())
	}
}

// ForceOpenHandler forces a circuit open, e.g. for a maintenance window.
func ForceOpenHandler(logger *slog.Logger, registry *circuitbreaker.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		cb, exists := registry.Lookup(name)
		if !exists {
			http.Error(w, "unknown circuit", http.StatusNotFound)
			return
		}

		cb.ForceOpen()
		logger.Info("Circuit forced open via admin endpoint",
			slog.String("circuit", name),
			slog.String("client", extractClientIP(r)))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cb.Status())
	}
}
